// Package notify delivers the outcome of background exports and imports to the
// account holder. Notifiers log, persist, or fan events out to several sinks.
package notify
