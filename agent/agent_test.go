package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/voyahq/voya-agent/memory"
	"github.com/voyahq/voya-agent/models"
	"github.com/voyahq/voya-agent/viator"
)

type fakeTool struct {
	name   string
	result string
	err    error
	gotCtx bool
	args   map[string]interface{}
}

func (f *fakeTool) Name() string                          { return f.name }
func (f *fakeTool) Description() string                   { return "fake tool" }
func (f *fakeTool) Parameters() openai.FunctionParameters { return openai.FunctionParameters{} }
func (f *fakeTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	f.gotCtx = ctx != nil
	f.args = args
	return f.result, f.err
}

func TestBuildMessages(t *testing.T) {
	a := New("test-key", "", "gpt-4o-mini", nil)

	history := []models.Message{
		{Role: models.RoleUser, Content: "Find tours in Rome"},
		{Role: models.RoleAssistant, Content: "Here are some options."},
		{Role: "tool", Content: "should be skipped"},
		{Role: models.RoleUser, Content: "Cheaper ones please"},
	}
	messages := a.buildMessages(history)

	if len(messages) != 4 {
		t.Fatalf("Expected system prompt plus 3 history messages, got %d", len(messages))
	}
	if _, ok := messages[0].(openai.ChatCompletionDeveloperMessageParam); !ok {
		t.Fatalf("Expected the system prompt first, got %T", messages[0])
	}
	if _, ok := messages[1].(openai.ChatCompletionUserMessageParam); !ok {
		t.Fatalf("Expected a user message second, got %T", messages[1])
	}
	if _, ok := messages[2].(openai.ChatCompletionAssistantMessageParam); !ok {
		t.Fatalf("Expected an assistant message third, got %T", messages[2])
	}
	if _, ok := messages[3].(openai.ChatCompletionUserMessageParam); !ok {
		t.Fatalf("Expected a user message last, got %T", messages[3])
	}
}

func TestRunTool(t *testing.T) {
	tool := &fakeTool{name: "search_tours", result: `[{"title":"Colosseum Tour"}]`}
	a := New("test-key", "", "gpt-4o-mini", []Tool{tool})

	t.Run("DispatchesByName", func(t *testing.T) {
		call := openai.ChatCompletionMessageToolCall{
			ID: "call_1",
			Function: openai.ChatCompletionMessageToolCallFunction{
				Name:      "search_tours",
				Arguments: `{"destination":"Rome","limit":3}`,
			},
		}
		result, trace := a.runTool(context.Background(), call)
		if result != tool.result {
			t.Fatalf("Expected the tool result, got %q", result)
		}
		if !tool.gotCtx {
			t.Fatal("Expected the context to be passed through")
		}
		if tool.args["destination"] != "Rome" {
			t.Fatalf("Expected parsed arguments, got %v", tool.args)
		}
		if trace["tool"] != "search_tours" {
			t.Fatalf("Expected a trace naming the tool, got %v", trace)
		}
		if _, hasErr := trace["error"]; hasErr {
			t.Fatalf("Did not expect an error in the trace: %v", trace)
		}
	})

	t.Run("UnknownTool", func(t *testing.T) {
		call := openai.ChatCompletionMessageToolCall{
			ID:       "call_2",
			Function: openai.ChatCompletionMessageToolCallFunction{Name: "book_flight"},
		}
		result, trace := a.runTool(context.Background(), call)
		if !strings.HasPrefix(result, "Error:") {
			t.Fatalf("Expected an error result, got %q", result)
		}
		if trace["error"] != "unknown tool" {
			t.Fatalf("Expected an unknown tool trace, got %v", trace)
		}
	})

	t.Run("MalformedArguments", func(t *testing.T) {
		call := openai.ChatCompletionMessageToolCall{
			ID: "call_3",
			Function: openai.ChatCompletionMessageToolCallFunction{
				Name:      "search_tours",
				Arguments: `{not json`,
			},
		}
		result, trace := a.runTool(context.Background(), call)
		if !strings.HasPrefix(result, "Error:") {
			t.Fatalf("Expected an error result, got %q", result)
		}
		if _, hasErr := trace["error"]; !hasErr {
			t.Fatalf("Expected an error in the trace: %v", trace)
		}
	})

	t.Run("ToolFailure", func(t *testing.T) {
		failing := &fakeTool{name: "search_tours", err: errors.New("upstream down")}
		a := New("test-key", "", "gpt-4o-mini", []Tool{failing})
		call := openai.ChatCompletionMessageToolCall{
			ID:       "call_4",
			Function: openai.ChatCompletionMessageToolCallFunction{Name: "search_tours", Arguments: `{}`},
		}
		result, trace := a.runTool(context.Background(), call)
		if result != "Error: upstream down. Do not retry" {
			t.Fatalf("Unexpected result %q", result)
		}
		if trace["error"] != "upstream down" {
			t.Fatalf("Expected the failure in the trace, got %v", trace)
		}
	})
}

func TestGenerateSchema(t *testing.T) {
	params := GenerateSchema[tourSearchArgs]()

	if params["type"] != "object" {
		t.Fatalf("Expected an object schema, got %v", params["type"])
	}
	props, ok := params["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected properties in the schema, got %v", params)
	}
	for _, field := range []string{"destination", "query", "start_date", "limit"} {
		if _, present := props[field]; !present {
			t.Fatalf("Expected property %q in schema %v", field, props)
		}
	}
	if params["additionalProperties"] != false {
		t.Fatalf("Expected additionalProperties to be false, got %v", params["additionalProperties"])
	}
}

func newViatorFixture(t *testing.T) *viator.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/destinations", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"destinations": []map[string]interface{}{
				{"destinationId": 511, "name": "Rome", "type": "CITY"},
			},
		})
	})
	mux.HandleFunc("/products/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"products": map[string]interface{}{
				"totalCount": 1,
				"results": []map[string]interface{}{
					{
						"productCode": "COLOSSEUM1",
						"title":       "Colosseum Tour",
						"pricing":     map[string]interface{}{"summary": map[string]interface{}{"fromPrice": 49.99}},
					},
				},
			},
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return viator.NewClient("test-key", server.URL, "")
}

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "voya_test.db")), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	store := memory.NewStore(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return store
}

func TestTourSearchExecute(t *testing.T) {
	store := newTestStore(t)
	tool := NewTourSearch(newViatorFixture(t), store)
	ctx := context.Background()

	t.Run("ReturnsToursAsJSON", func(t *testing.T) {
		result, err := tool.Execute(ctx, map[string]interface{}{"destination": "Rome", "limit": float64(3)})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		var tours []models.Tour
		if err := json.Unmarshal([]byte(result), &tours); err != nil {
			t.Fatalf("Expected JSON tours, got %q: %v", result, err)
		}
		if len(tours) != 1 || tours[0].Title != "Colosseum Tour" {
			t.Fatalf("Unexpected tours %v", tours)
		}
	})

	t.Run("WritesThroughToCache", func(t *testing.T) {
		cached, err := store.Tours(ctx, 10)
		if err != nil {
			t.Fatalf("Failed to read cached tours: %v", err)
		}
		if len(cached) != 1 || cached[0].Code != "COLOSSEUM1" {
			t.Fatalf("Expected the tour in the cache, got %v", cached)
		}
	})

	t.Run("RequiresDestination", func(t *testing.T) {
		if _, err := tool.Execute(ctx, map[string]interface{}{"query": "food"}); err == nil {
			t.Fatal("Expected an error without a destination")
		}
	})
}
