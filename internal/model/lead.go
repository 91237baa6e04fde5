package model

import "time"

// WebsiteStatus classifies the health of a lead's website. It is only ever
// set from the website validator's classification output.
type WebsiteStatus string

const (
	WebsiteStatusNoWebsite       WebsiteStatus = "no_website"
	WebsiteStatusSocialOnly      WebsiteStatus = "social_only"
	WebsiteStatusBroken          WebsiteStatus = "broken"
	WebsiteStatusTechnicalIssues WebsiteStatus = "technical_issues"
	WebsiteStatusOutdated        WebsiteStatus = "outdated"
	WebsiteStatusAcceptable      WebsiteStatus = "acceptable"
	WebsiteStatusUnknown         WebsiteStatus = "unknown"
)

// LeadStatus represents where a lead sits in the outreach funnel.
// Transitions between statuses are guarded by the lifecycle package.
type LeadStatus string

const (
	LeadStatusPending   LeadStatus = "pending"
	LeadStatusApproved  LeadStatus = "approved"
	LeadStatusRejected  LeadStatus = "rejected"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusResponded LeadStatus = "responded"
	LeadStatusInactive  LeadStatus = "inactive"
)

// Lead represents a discovered or manually entered business candidate
// for outreach.
type Lead struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Website       string        `json:"website,omitempty"`
	WebsiteStatus WebsiteStatus `json:"website_status"`
	Status        LeadStatus    `json:"status"`
	Converted     bool          `json:"converted"`
	ConvertedBy   string        `json:"converted_by,omitempty"`
	ConvertedAt   *time.Time    `json:"converted_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ContactInfo holds contact details discovered for a lead. A lead may have
// one row per scraped email address; social profile URLs are merged into a
// single row (the lead's oldest contact row).
type ContactInfo struct {
	ID              string    `json:"id"`
	LeadID          string    `json:"lead_id"`
	Email           string    `json:"email,omitempty"`
	EmailSource     string    `json:"email_source,omitempty"`
	EmailConfidence int       `json:"email_confidence,omitempty"` // 0-100
	FacebookURL     string    `json:"facebook_url,omitempty"`
	InstagramURL    string    `json:"instagram_url,omitempty"`
	LinkedInURL     string    `json:"linkedin_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
