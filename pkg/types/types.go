package types

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryNetwork      Category = "Network"
	CategoryWeb          Category = "Web"
	CategoryOSINT        Category = "OSINT"
	CategoryCrypto       Category = "Crypto"
	CategoryWireless     Category = "Wireless"
	CategoryDatabase     Category = "Database"
	CategoryUtilities    Category = "Utilities"
	CategoryReverse      Category = "Reverse"
	CategoryPhishing     Category = "Phishing"
	CategorySecurity     Category = "Security"
	CategoryClickjacking Category = "Clickjacking"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryNetwork,
	CategoryWeb,
	CategoryOSINT,
	CategoryCrypto,
	CategoryWireless,
	CategoryDatabase,
	CategoryUtilities,
	CategoryReverse,
	CategoryPhishing,
	CategorySecurity,
	CategoryClickjacking,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory matches a category name case-insensitively.
func ParseCategory(name string) (Category, bool) {
	for _, known := range Categories {
		if strings.EqualFold(string(known), strings.TrimSpace(name)) {
			return known, true
		}
	}
	return "", false
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// ToolMetadata describes a tool. It is fixed once the tool is constructed.
type ToolMetadata struct {
	Name            string    `json:"name"`
	Category        Category  `json:"category"`
	Version         string    `json:"version"`
	Author          string    `json:"author"`
	Description     string    `json:"description"`
	Usage           string    `json:"usage"`
	Requirements    []string  `json:"requirements,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	RiskLevel       RiskLevel `json:"risk_level"`
	LegalDisclaimer string    `json:"legal_disclaimer,omitempty"`
}

// Normalized fills defaults that a constructor may leave empty.
func (m ToolMetadata) Normalized() ToolMetadata {
	if m.RiskLevel == "" {
		m.RiskLevel = RiskLow
	}
	if m.Version == "" {
		m.Version = "1.0.0"
	}
	if m.Author == "" {
		m.Author = "Code Monkey Cybersecurity"
	}
	return m
}

// Record is a single structured result emitted by a tool.
type Record map[string]interface{}

type ToolState string

const (
	StateIdle       ToolState = "idle"
	StateValidating ToolState = "validating"
	StateRunning    ToolState = "running"
	StateDone       ToolState = "done"
	StateFailed     ToolState = "failed"
)

func (s ToolState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Timestamp renders t as ISO-8601 in local time.
func Timestamp(t time.Time) string {
	return t.Local().Format(time.RFC3339)
}
