// Package migrator defines the plugin protocol through which independently
// versioned data domains contribute to account export archives and read them
// back, together with the ordered registry, export selections, and progress sinks
// shared by every migrator.
package migrator
