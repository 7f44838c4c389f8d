// Package migration sequences account exports and imports.
//
// Service drives the core account step and every registered migrator in a
// fixed order, writes the manifest last on export and reads it first on
// import, and refuses to mutate anything until every migrator accepted the
// archive. JobRunner binds the Service to durable account storage for
// background execution.
package migration
