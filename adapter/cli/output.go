package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/google/uuid"
)

// DateLayout is the date format accepted by --due flags.
const DateLayout = "2006-01-02"

// ParseDueDate parses an optional YYYY-MM-DD flag value.
func ParseDueDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid due date format (use YYYY-MM-DD): %w", err)
	}
	return &parsed, nil
}

// ParseOptionalID parses an optional UUID flag value.
func ParseOptionalID(name, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return id, nil
}

// ParseIDs parses a list of UUID flag values.
func ParseIDs(name string, values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseKPILinks parses --kpi values of the form user-id:kpi-doc-id:index:weight.
func ParseKPILinks(values []string) ([]domain.KPILink, error) {
	links := make([]domain.KPILink, 0, len(values))
	for _, v := range values {
		parts := strings.Split(v, ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("invalid kpi link %q (use user-id:kpi-doc-id:index:weight)", v)
		}
		userID, err := uuid.Parse(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid kpi link user %q: %w", parts[0], err)
		}
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("invalid kpi link index %q: %w", parts[2], err)
		}
		weight, err := strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid kpi link weight %q: %w", parts[3], err)
		}
		links = append(links, domain.KPILink{
			UserID:             userID,
			KPIDocID:           parts[1],
			KPIIndex:           index,
			ContributionWeight: weight,
		})
	}
	return links, nil
}

// PrintHierarchy writes a milestone tree, one node per line.
func PrintHierarchy(w io.Writer, view *application.HierarchyView) {
	fmt.Fprintf(w, "%s  %s  [%s] %.1f%%\n", view.ID, view.Title, view.Status, view.Progress)
	if view.Remaining != nil {
		fmt.Fprintf(w, "  remaining capacity: %.2f\n", *view.Remaining)
	}
	printChildren(w, view.NodeView, 1)
}

func printChildren(w io.Writer, n application.NodeView, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, sub := range n.SubMilestones {
		fmt.Fprintf(w, "%s+ %s  %s  w=%.2f  [%s] %.1f%%\n", indent, sub.ID, sub.Title, sub.Weight, sub.Status, sub.Progress)
		printChildren(w, sub, depth+1)
	}
	for _, task := range n.Tasks {
		fmt.Fprintf(w, "%s- %s  %s  w=%.2f  [%s] %.1f%%\n", indent, task.ID, task.Title, task.Weight, task.Status, task.Progress)
	}
}
