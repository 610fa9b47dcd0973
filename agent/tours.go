package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"

	"github.com/voyahq/voya-agent/memory"
	"github.com/voyahq/voya-agent/viator"
)

type tourSearchArgs struct {
	Destination string `json:"destination" jsonschema_description:"City or country to search tours in, e.g. Rome"`
	Query       string `json:"query,omitempty" jsonschema_description:"Activity or theme, e.g. food, walking, museum"`
	StartDate   string `json:"start_date,omitempty" jsonschema_description:"Earliest tour date in YYYY-MM-DD format"`
	Limit       int    `json:"limit,omitempty" jsonschema_description:"Number of tours to return, 1-10"`
}

// TourSearch lets the assistant look up real bookable tours on Viator.
// Results are written through to the tour cache.
type TourSearch struct {
	viator *viator.Client
	store  *memory.Store
	logger *slog.Logger
}

func NewTourSearch(client *viator.Client, store *memory.Store) *TourSearch {
	return &TourSearch{
		viator: client,
		store:  store,
		logger: slog.Default(),
	}
}

func (t *TourSearch) Name() string {
	return "search_tours"
}

func (t *TourSearch) Description() string {
	return "Search Viator for real bookable tours by destination, with optional activity query and start date. Returns tour titles, prices, ratings, durations and booking links."
}

func (t *TourSearch) Parameters() openai.FunctionParameters {
	return GenerateSchema[tourSearchArgs]()
}

func (t *TourSearch) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	var parsed tourSearchArgs
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	if parsed.Destination == "" {
		return "", fmt.Errorf("destination is required")
	}
	limit := parsed.Limit
	if limit <= 0 || limit > 10 {
		limit = 5
	}

	tours, err := t.viator.SearchTours(ctx, parsed.Query, parsed.Destination, parsed.StartDate, limit)
	if err != nil {
		return "", err
	}
	if err := t.store.CacheTours(ctx, tours); err != nil {
		// Cache misses must not break the chat turn.
		t.logger.Error("Error caching tours", "error", err)
	}

	if len(tours) == 0 {
		return fmt.Sprintf("No tours found in %s for those dates.", parsed.Destination), nil
	}
	out, err := json.Marshal(tours)
	if err != nil {
		return "", fmt.Errorf("encode tours: %w", err)
	}
	return string(out), nil
}
