// Package models contains GORM persistence models for the local mirror of a
// reconciliation session. They are kept separate from domain entities so the
// domain layer stays free of ORM tags.
//
// Mappers convert between domain entities and models in both directions.
// Line items carry their position on the payment so reloads preserve order.
package models
