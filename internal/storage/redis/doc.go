// Package redis keeps conversation state that must survive a daemon restart
// or be shared between replicas.
package redis
