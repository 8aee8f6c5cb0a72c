// Package models contains GORM persistence models for the settlement
// records. Domain aggregates carry no ORM tags; repositories convert with
// FromDomain and ToDomain.
//
// Identities are stored as base58 text. Unsigned amounts use Units:
// numeric(20,0) on postgres and zero-padded text on sqlite, so every
// uint64 value round-trips on both drivers.
package models
