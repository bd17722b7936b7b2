package chatbot

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/shared"
)

// NodeType is the behavior of a flow node
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeMessage   NodeType = "message"
	NodeTypeQuestion  NodeType = "question"
	NodeTypeCondition NodeType = "condition"
	NodeTypeAction    NodeType = "action"
	NodeTypeHandoff   NodeType = "handoff"
	NodeTypeEnd       NodeType = "end"
)

// IsValid reports whether the node type is known
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeStart, NodeTypeMessage, NodeTypeQuestion, NodeTypeCondition,
		NodeTypeAction, NodeTypeHandoff, NodeTypeEnd:
		return true
	}
	return false
}

// ErrInvalidGraph is returned when a submitted graph is inconsistent
var ErrInvalidGraph = shared.NewDomainError("INVALID_GRAPH", "Flow graph is invalid")

// Node is one step of a flow
type Node struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	FlowID    uuid.UUID
	NodeType  NodeType
	Label     string
	PositionX float64
	PositionY float64
	Config    json.RawMessage
}

// Edge connects two nodes of the same flow
type Edge struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	FlowID       uuid.UUID
	SourceNodeID uuid.UUID
	TargetNodeID uuid.UUID
	SourceHandle string
	Label        string
	Condition    json.RawMessage
}

// Graph is the complete node and edge set of a flow
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// NodeSpec is a submitted node. Key is the client's identifier for the
// node; when it is a UUID it becomes the node ID, otherwise an ID is
// generated and edges referring to the key are remapped.
type NodeSpec struct {
	Key       string
	NodeType  NodeType
	Label     string
	PositionX float64
	PositionY float64
	Config    json.RawMessage
}

// EdgeSpec is a submitted edge whose endpoints are node keys
type EdgeSpec struct {
	Source       string
	Target       string
	SourceHandle string
	Label        string
	Condition    json.RawMessage
}

// BuildGraph validates a submitted graph and assigns identifiers.
// Keys must be unique, every edge endpoint must name a submitted node and
// at most one start node is allowed.
func BuildGraph(tenantID, flowID uuid.UUID, nodes []NodeSpec, edges []EdgeSpec) (*Graph, error) {
	ids := make(map[string]uuid.UUID, len(nodes))
	used := make(map[uuid.UUID]struct{}, len(nodes))
	graph := &Graph{
		Nodes: make([]Node, 0, len(nodes)),
		Edges: make([]Edge, 0, len(edges)),
	}

	starts := 0
	for i, spec := range nodes {
		if spec.Key == "" {
			return nil, invalidGraph(fmt.Sprintf("node %d has no id", i))
		}
		if _, dup := ids[spec.Key]; dup {
			return nil, invalidGraph(fmt.Sprintf("duplicate node id %q", spec.Key))
		}
		if !spec.NodeType.IsValid() {
			return nil, invalidGraph(fmt.Sprintf("node %q has unknown type %q", spec.Key, spec.NodeType))
		}
		if spec.NodeType == NodeTypeStart {
			starts++
		}

		id, err := uuid.Parse(spec.Key)
		if err != nil || id == uuid.Nil {
			id = uuid.New()
		}
		if _, taken := used[id]; taken {
			return nil, invalidGraph(fmt.Sprintf("duplicate node id %q", spec.Key))
		}
		ids[spec.Key] = id
		used[id] = struct{}{}

		graph.Nodes = append(graph.Nodes, Node{
			ID:        id,
			TenantID:  tenantID,
			FlowID:    flowID,
			NodeType:  spec.NodeType,
			Label:     spec.Label,
			PositionX: spec.PositionX,
			PositionY: spec.PositionY,
			Config:    orEmptyObject(spec.Config),
		})
	}
	if starts > 1 {
		return nil, invalidGraph("a flow can have at most one start node")
	}

	for i, spec := range edges {
		source, ok := ids[spec.Source]
		if !ok {
			return nil, invalidGraph(fmt.Sprintf("edge %d references unknown source %q", i, spec.Source))
		}
		target, ok := ids[spec.Target]
		if !ok {
			return nil, invalidGraph(fmt.Sprintf("edge %d references unknown target %q", i, spec.Target))
		}
		graph.Edges = append(graph.Edges, Edge{
			ID:           uuid.New(),
			TenantID:     tenantID,
			FlowID:       flowID,
			SourceNodeID: source,
			TargetNodeID: target,
			SourceHandle: spec.SourceHandle,
			Label:        spec.Label,
			Condition:    orEmptyObject(spec.Condition),
		})
	}

	return graph, nil
}

// NodeIDs returns the node IDs in submission order
func (g *Graph) NodeIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// ReassignNodes gives every node whose ID is in taken a new ID and moves
// the edge endpoints along. Node IDs are unique across all flows of a
// tenant, so a client key copied from another flow must not be reused.
func (g *Graph) ReassignNodes(taken []uuid.UUID) {
	if len(taken) == 0 {
		return
	}
	fresh := make(map[uuid.UUID]uuid.UUID, len(taken))
	for _, id := range taken {
		fresh[id] = uuid.New()
	}
	for i := range g.Nodes {
		if id, ok := fresh[g.Nodes[i].ID]; ok {
			g.Nodes[i].ID = id
		}
	}
	for i := range g.Edges {
		e := &g.Edges[i]
		if id, ok := fresh[e.SourceNodeID]; ok {
			e.SourceNodeID = id
		}
		if id, ok := fresh[e.TargetNodeID]; ok {
			e.TargetNodeID = id
		}
	}
}

func orEmptyObject(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage(`{}`)
	}
	return raw
}

func invalidGraph(reason string) error {
	return shared.NewDomainError(ErrInvalidGraph.Code, "Flow graph is invalid: "+reason)
}
