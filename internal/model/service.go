package model

import "time"

// Service is a provider's bookable offering. DurationMins is fixed per
// service and is the length of every appointment booked against it.
type Service struct {
	ID           string
	ProviderID   string
	Name         string
	Description  string
	Price        string // decimal carried as text, formatting belongs to callers
	DurationMins int
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Provider *ProviderSummary
}

// ProviderSummary is the subset of a provider profile shown alongside
// services and bookings.
type ProviderSummary struct {
	ID        string
	FullName  string
	AvatarURL string
}

// ServiceSummary is the subset of a service joined onto a client's
// booking list.
type ServiceSummary struct {
	Name         string
	Price        string
	DurationMins int
}
