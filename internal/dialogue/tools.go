// Package dialogue streams assistant responses from the LLM service,
// cuts them into sentence chunks for synthesis and dispatches tool calls
// to registered handlers.
package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ToolName identifies a tool in the closed catalog. The LLM can only
// invoke these; unknown names are rejected without dispatch.
type ToolName string

const (
	ToolTransferToAgent   ToolName = "transfer_to_agent"
	ToolScheduleCallback  ToolName = "schedule_callback"
	ToolLookupCustomer    ToolName = "lookup_customer"
	ToolGetAccountBalance ToolName = "get_account_balance"
	ToolCancelService     ToolName = "cancel_service"
	ToolUpdateContactInfo ToolName = "update_contact_info"
)

// Catalog is the closed tool set offered to the model.
var Catalog = []ToolSpec{
	{Name: ToolTransferToAgent, Description: "Transfer the call to a human agent", Parameters: []string{"department", "priority"}},
	{Name: ToolScheduleCallback, Description: "Schedule a callback for the customer", Parameters: []string{"phone", "datetime", "reason"}},
	{Name: ToolLookupCustomer, Description: "Look up a customer record", Parameters: []string{"customer_id"}},
	{Name: ToolGetAccountBalance, Description: "Get the current account balance"},
	{Name: ToolCancelService, Description: "Cancel the customer's service"},
	{Name: ToolUpdateContactInfo, Description: "Update the customer's contact information"},
}

// ToolSpec describes one tool to the model.
type ToolSpec struct {
	Name        ToolName `json:"name"`
	Description string   `json:"description"`
	Parameters  []string `json:"parameters,omitempty"`
}

// ToolCall is one invocation requested by the model.
type ToolCall struct {
	Name      ToolName        `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolHandler executes one tool call and returns its result. Results are
// marshalled back into the stream; side effects are the handler's own.
type ToolHandler func(ctx context.Context, args json.RawMessage) (interface{}, error)

// ToolRegistry maps catalog names to handlers. Registration happens at
// startup; dispatch is read-only after that.
type ToolRegistry struct {
	mu       sync.RWMutex
	handlers map[ToolName]ToolHandler
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{handlers: make(map[ToolName]ToolHandler)}
}

// Register binds a handler to a catalog tool. Names outside the catalog
// are rejected.
func (r *ToolRegistry) Register(name ToolName, handler ToolHandler) error {
	if !inCatalog(name) {
		return fmt.Errorf("tool %q is not in the catalog", name)
	}
	r.mu.Lock()
	r.handlers[name] = handler
	r.mu.Unlock()
	return nil
}

// Dispatch executes one tool call. Catalog tools without a registered
// handler return a polite unavailable result rather than an error, so
// the conversation continues.
func (r *ToolRegistry) Dispatch(ctx context.Context, call ToolCall) (interface{}, error) {
	if !inCatalog(call.Name) {
		return nil, fmt.Errorf("unknown tool %q", call.Name)
	}
	r.mu.RLock()
	h := r.handlers[call.Name]
	r.mu.RUnlock()
	if h == nil {
		return map[string]string{"status": "unavailable", "detail": "this action is not available right now"}, nil
	}
	return h(ctx, call.Arguments)
}

func inCatalog(name ToolName) bool {
	for _, t := range Catalog {
		if t.Name == name {
			return true
		}
	}
	return false
}
