// Package mysql stores the transaction log in MySQL. The schema is applied
// from the embedded files in deploy/migrations.
package mysql
