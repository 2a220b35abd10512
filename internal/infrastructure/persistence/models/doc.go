// Package models contains the GORM persistence models of the pharmacy stock
// tables. Domain types carry no ORM tags; each model converts to and from its
// domain counterpart through ToDomain / FromDomain helpers.
package models
