// Package service is the single write entry point of the exchange.
//
// Every instruction runs under one lock as one store transaction: the
// ledger mutation, its outbox events and the sequence mark commit in a
// single pebble batch. Only after the commit does the in-memory book
// move and the journal record get appended.
package service
