package mcp

import (
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

var errNoDatabase = errors.New("requires database connection")

type kpiLinkInput struct {
	UserID             string  `json:"user_id" jsonschema:"required"`
	KPIDocID           string  `json:"kpi_doc_id" jsonschema:"required"`
	KPIIndex           int     `json:"kpi_index"`
	ContributionWeight float64 `json:"contribution_weight" jsonschema:"required"`
}

func requireApp(app *cli.App, what string) error {
	if app == nil || app.Container() == nil {
		return fmt.Errorf("%s %w", what, errNoDatabase)
	}
	return nil
}

func parseUUID(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.UUID{}, errors.New("id is required")
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("invalid id: %w", err)
	}
	return id, nil
}

func parseOptionalUUID(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, nil
	}
	return parseUUID(value)
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := parseUUID(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseDueDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid due date format, use YYYY-MM-DD: %w", err)
	}
	return &parsed, nil
}

func toKPILinks(inputs []kpiLinkInput) ([]domain.KPILink, error) {
	links := make([]domain.KPILink, 0, len(inputs))
	for _, in := range inputs {
		userID, err := parseUUID(in.UserID)
		if err != nil {
			return nil, fmt.Errorf("kpi link user: %w", err)
		}
		links = append(links, domain.KPILink{
			UserID:             userID,
			KPIDocID:           in.KPIDocID,
			KPIIndex:           in.KPIIndex,
			ContributionWeight: in.ContributionWeight,
		})
	}
	return links, nil
}
