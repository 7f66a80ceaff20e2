// Package graph assembles decoded operations into a presentation-facing
// node/edge model. The builder is pure: identical inputs always produce an
// identical graph, which keeps snapshot tests stable.
package graph

import (
	"fmt"

	"github.com/dotandev/sorograph/internal/address"
	"github.com/dotandev/sorograph/internal/horizon"
	"github.com/dotandev/sorograph/internal/schema"
)

const (
	NodeOperation   = "operation"
	NodeStateChange = "state_change"

	EdgeSequence  = "sequence"
	EdgeOwnership = "ownership"
)

type Node struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
	Index int    `json:"index"`

	Operation   *schema.SorobanOperation `json:"operation,omitempty"`
	StateChange *schema.StateChange      `json:"stateChange,omitempty"`
}

type Edge struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// bookkeepingTypes are internal metrics-only pseudo-operations that must
// never appear in the graph. They are dropped before numbering so that
// correlation by post-filter index stays aligned with the resolver and the
// metadata walker.
var bookkeepingTypes = map[string]struct{}{
	"metrics":      {},
	"core_metrics": {},
}

func isBookkeeping(rec horizon.OperationRecord) bool {
	_, ok := bookkeepingTypes[rec.Type]
	return ok
}

// Surfaced returns the operation records that survive bookkeeping filtering,
// in original order. Callers that key decoded data by operation index must
// index into this list, not the raw one.
func Surfaced(records []horizon.OperationRecord) []horizon.OperationRecord {
	out := make([]horizon.OperationRecord, 0, len(records))
	for _, rec := range records {
		if !isBookkeeping(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Build produces one node per surfaced operation, sequential edges between
// consecutive operations, and ownership edges from each operation to its
// state-change entries. sorobanOps are matched by their post-filter Index.
func Build(records []horizon.OperationRecord, sorobanOps []schema.SorobanOperation) Graph {
	byIndex := make(map[int]*schema.SorobanOperation, len(sorobanOps))
	for i := range sorobanOps {
		byIndex[sorobanOps[i].Index] = &sorobanOps[i]
	}

	g := Graph{Nodes: []Node{}, Edges: []Edge{}}
	surfaced := Surfaced(records)
	for idx, rec := range surfaced {
		opID := fmt.Sprintf("op-%d", idx)
		node := Node{
			ID:    opID,
			Type:  NodeOperation,
			Label: operationLabel(rec),
			Index: idx,
		}
		if sop := byIndex[idx]; sop != nil {
			node.Operation = sop
			node.Label = invocationLabel(*sop)
			g.Edges = append(g.Edges, ownershipEdges(opID, sop.StateChanges)...)
			for sci := range sop.StateChanges {
				g.Nodes = append(g.Nodes, stateChangeNode(opID, sci, &sop.StateChanges[sci]))
			}
		}
		g.Nodes = append(g.Nodes, node)

		if idx > 0 {
			g.Edges = append(g.Edges, Edge{
				ID:   fmt.Sprintf("seq-%d-%d", idx-1, idx),
				From: fmt.Sprintf("op-%d", idx-1),
				To:   opID,
				Kind: EdgeSequence,
			})
		}
	}
	return g
}

func stateChangeNode(opID string, i int, sc *schema.StateChange) Node {
	return Node{
		ID:          fmt.Sprintf("%s-sc-%d", opID, i),
		Type:        NodeStateChange,
		Label:       stateChangeLabel(*sc),
		Index:       i,
		StateChange: sc,
	}
}

func ownershipEdges(opID string, changes []schema.StateChange) []Edge {
	edges := make([]Edge, 0, len(changes))
	for i := range changes {
		edges = append(edges, Edge{
			ID:   fmt.Sprintf("%s-owns-%d", opID, i),
			From: opID,
			To:   fmt.Sprintf("%s-sc-%d", opID, i),
			Kind: EdgeOwnership,
		})
	}
	return edges
}

func operationLabel(rec horizon.OperationRecord) string {
	switch rec.Type {
	case horizon.OpTypePayment:
		return fmt.Sprintf("payment %s %s", rec.Amount, assetLabel(rec))
	default:
		return rec.Type
	}
}

func assetLabel(rec horizon.OperationRecord) string {
	if rec.AssetCode != "" {
		return rec.AssetCode
	}
	return "XLM"
}

func invocationLabel(op schema.SorobanOperation) string {
	target := address.Short(op.ContractID)
	if op.FunctionName == "" {
		return target
	}
	return fmt.Sprintf("%s::%s", target, op.FunctionName)
}

func stateChangeLabel(sc schema.StateChange) string {
	return fmt.Sprintf("%s %s (%s)", sc.Kind, sc.Key.String(), sc.Durability)
}
