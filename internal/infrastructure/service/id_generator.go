// Package service provides small infrastructure services shared across layers.
package service

import "github.com/google/uuid"

// UUIDGenerator issues UUIDv4 identifiers for new records.
type UUIDGenerator struct{}

// NewUUIDGenerator creates a new UUIDGenerator.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// GenerateID returns a new UUIDv4 string.
func (g *UUIDGenerator) GenerateID() string {
	return uuid.New().String()
}
