package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/chatbot"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	chatbotsSQL = testSchemaSQL + `\."chatbots"`
	flowsSQL    = testSchemaSQL + `\."chatbot_flows"`
	nodesSQL    = testSchemaSQL + `\."chatbot_nodes"`
	edgesSQL    = testSchemaSQL + `\."chatbot_edges"`
)

var flowColumns = []string{
	"id", "tenant_id", "created_by", "chatbot_id", "name", "description", "is_active", "version",
	"created_at", "updated_at",
}

func newMockFlowRepository(t *testing.T) (*GormFlowRepository, sqlmock.Sqlmock, *sql.DB) {
	gormDB, mock, mockDB := newMockGormDB(t)
	return NewGormFlowRepository(gormDB), mock, mockDB
}

func flowRow(id, chatbotID uuid.UUID, version int) *sqlmock.Rows {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(flowColumns).
		AddRow(id.String(), testTenantID.String(), nil, chatbotID.String(), "Triage", "", true, version, now, now)
}

func testGraph(t *testing.T, flowID uuid.UUID, keys ...string) *chatbot.Graph {
	t.Helper()
	nodes := make([]chatbot.NodeSpec, len(keys))
	for i, key := range keys {
		nodes[i] = chatbot.NodeSpec{Key: key, NodeType: chatbot.NodeTypeMessage, Label: key}
	}
	var edges []chatbot.EdgeSpec
	if len(keys) > 1 {
		edges = append(edges, chatbot.EdgeSpec{Source: keys[0], Target: keys[1], Condition: json.RawMessage(`{"eq":"yes"}`)})
	}
	graph, err := chatbot.BuildGraph(testTenantID, flowID, nodes, edges)
	require.NoError(t, err)
	return graph
}

func TestGormFlowRepository_ReplaceGraph(t *testing.T) {
	t.Run("deletes then inserts inside one transaction", func(t *testing.T) {
		repo, mock, mockDB := newMockFlowRepository(t)
		defer mockDB.Close()

		chatbotID, flowID := uuid.New(), uuid.New()
		graph := testGraph(t, flowID, "a", "b")

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM `+flowsSQL+` WHERE tenant_id = \$1 AND .*chatbot_id = \$2 AND id = \$3.* FOR UPDATE`).
			WithArgs(testTenantID, chatbotID, flowID, 1).
			WillReturnRows(flowRow(flowID, chatbotID, 2))
		mock.ExpectExec(`DELETE FROM `+edgesSQL+` WHERE tenant_id = \$1 AND flow_id = \$2`).
			WithArgs(testTenantID, flowID).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec(`DELETE FROM `+nodesSQL+` WHERE tenant_id = \$1 AND flow_id = \$2`).
			WithArgs(testTenantID, flowID).
			WillReturnResult(sqlmock.NewResult(0, 4))
		mock.ExpectQuery(`SELECT "id" FROM `+nodesSQL+` WHERE tenant_id = \$1 AND id IN \(\$2,\$3\)`).
			WithArgs(testTenantID, graph.Nodes[0].ID, graph.Nodes[1].ID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(`INSERT INTO ` + nodesSQL).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`INSERT INTO ` + edgesSQL).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`UPDATE `+flowsSQL+` SET "updated_at"=\$1,"version"=version \+ \$2 WHERE tenant_id = \$3 AND id = \$4 RETURNING \*`).
			WithArgs(sqlmock.AnyArg(), 1, testTenantID, flowID).
			WillReturnRows(flowRow(flowID, chatbotID, 3))
		mock.ExpectCommit()

		flow, err := repo.ReplaceGraph(context.Background(), testTenantID, chatbotID, flowID, graph)

		require.NoError(t, err)
		assert.Equal(t, 3, flow.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty graph only deletes", func(t *testing.T) {
		repo, mock, mockDB := newMockFlowRepository(t)
		defer mockDB.Close()

		chatbotID, flowID := uuid.New(), uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(flowRow(flowID, chatbotID, 1))
		mock.ExpectExec(`DELETE FROM ` + edgesSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM ` + nodesSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`UPDATE ` + flowsSQL).WillReturnRows(flowRow(flowID, chatbotID, 2))
		mock.ExpectCommit()

		flow, err := repo.ReplaceGraph(context.Background(), testTenantID, chatbotID, flowID, &chatbot.Graph{})

		require.NoError(t, err)
		assert.Equal(t, 2, flow.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back", func(t *testing.T) {
		repo, mock, mockDB := newMockFlowRepository(t)
		defer mockDB.Close()

		chatbotID, flowID := uuid.New(), uuid.New()
		graph := testGraph(t, flowID, "a", "b")
		insertErr := errors.New("insert failed")

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(flowRow(flowID, chatbotID, 2))
		mock.ExpectExec(`DELETE FROM ` + edgesSQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM ` + nodesSQL).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectQuery(`SELECT "id" FROM ` + nodesSQL).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(`INSERT INTO ` + nodesSQL).WillReturnError(insertErr)
		mock.ExpectRollback()

		flow, err := repo.ReplaceGraph(context.Background(), testTenantID, chatbotID, flowID, graph)

		assert.Nil(t, flow)
		assert.ErrorIs(t, err, insertErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("node ids held by another flow are replaced", func(t *testing.T) {
		repo, mock, mockDB := newMockFlowRepository(t)
		defer mockDB.Close()

		chatbotID, flowID := uuid.New(), uuid.New()
		copied, own := uuid.New(), uuid.New()
		graph := testGraph(t, flowID, copied.String(), own.String())

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(flowRow(flowID, chatbotID, 1))
		mock.ExpectExec(`DELETE FROM ` + edgesSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM ` + nodesSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT "id" FROM `+nodesSQL).
			WithArgs(testTenantID, copied, own).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(copied.String()))
		mock.ExpectExec(`INSERT INTO ` + nodesSQL).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`INSERT INTO ` + edgesSQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`UPDATE ` + flowsSQL).WillReturnRows(flowRow(flowID, chatbotID, 2))
		mock.ExpectCommit()

		_, err := repo.ReplaceGraph(context.Background(), testTenantID, chatbotID, flowID, graph)

		require.NoError(t, err)
		assert.NotEqual(t, copied, graph.Nodes[0].ID)
		assert.Equal(t, own, graph.Nodes[1].ID)
		assert.Equal(t, graph.Nodes[0].ID, graph.Edges[0].SourceNodeID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate node id from a concurrent save is a conflict", func(t *testing.T) {
		repo, mock, mockDB := newMockFlowRepository(t)
		defer mockDB.Close()

		chatbotID, flowID := uuid.New(), uuid.New()
		graph := testGraph(t, flowID, uuid.NewString(), uuid.NewString())

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(flowRow(flowID, chatbotID, 1))
		mock.ExpectExec(`DELETE FROM ` + edgesSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM ` + nodesSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT "id" FROM ` + nodesSQL).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(`INSERT INTO ` + nodesSQL).WillReturnError(gorm.ErrDuplicatedKey)
		mock.ExpectRollback()

		flow, err := repo.ReplaceGraph(context.Background(), testTenantID, chatbotID, flowID, graph)

		assert.Nil(t, flow)
		assert.ErrorIs(t, err, shared.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown flow rolls back with not found", func(t *testing.T) {
		repo, mock, mockDB := newMockFlowRepository(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows(flowColumns))
		mock.ExpectRollback()

		_, err := repo.ReplaceGraph(context.Background(), testTenantID, uuid.New(), uuid.New(), &chatbot.Graph{})

		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormFlowRepository_FindGraph(t *testing.T) {
	repo, mock, mockDB := newMockFlowRepository(t)
	defer mockDB.Close()

	flowID, a, b := uuid.New(), uuid.New(), uuid.New()
	mock.ExpectQuery(`SELECT \* FROM `+nodesSQL+` WHERE tenant_id = \$1 AND flow_id = \$2 ORDER BY id`).
		WithArgs(testTenantID, flowID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "flow_id", "node_type", "label", "position_x", "position_y", "config"}).
			AddRow(a.String(), testTenantID.String(), flowID.String(), "start", "Hi", 0.0, 0.0, []byte(`{}`)).
			AddRow(b.String(), testTenantID.String(), flowID.String(), "end", "Bye", 100.0, 0.0, []byte(`{}`)))
	mock.ExpectQuery(`SELECT \* FROM `+edgesSQL+` WHERE tenant_id = \$1 AND flow_id = \$2 ORDER BY id`).
		WithArgs(testTenantID, flowID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "flow_id", "source_node_id", "target_node_id", "source_handle", "label", "condition"}).
			AddRow(uuid.New().String(), testTenantID.String(), flowID.String(), a.String(), b.String(), "", "", []byte(`{}`)))

	graph, err := repo.FindGraph(context.Background(), testTenantID, flowID)

	require.NoError(t, err)
	require.Len(t, graph.Nodes, 2)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, chatbot.NodeTypeStart, graph.Nodes[0].NodeType)
	assert.Equal(t, a, graph.Edges[0].SourceNodeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormFlowRepository_DeleteForTenant(t *testing.T) {
	t.Run("removes flow and graph", func(t *testing.T) {
		repo, mock, mockDB := newMockFlowRepository(t)
		defer mockDB.Close()

		chatbotID, flowID := uuid.New(), uuid.New()
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM `+flowsSQL+` WHERE tenant_id = \$1 AND .*chatbot_id = \$2 AND id = \$3`).
			WithArgs(testTenantID, chatbotID, flowID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM ` + edgesSQL).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`DELETE FROM ` + nodesSQL).WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectCommit()

		assert.NoError(t, repo.DeleteForTenant(context.Background(), testTenantID, chatbotID, flowID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("flow of another chatbot is not found", func(t *testing.T) {
		repo, mock, mockDB := newMockFlowRepository(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM ` + flowsSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.DeleteForTenant(context.Background(), testTenantID, uuid.New(), uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormChatbotRepository_DeleteForTenant(t *testing.T) {
	t.Run("cascades flows nodes and edges", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormChatbotRepository(gormDB)

		id := uuid.New()
		subquery := `\(SELECT id FROM ` + flowsSQL + ` WHERE tenant_id = \$2 AND chatbot_id = \$3\)`

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM `+edgesSQL+` WHERE tenant_id = \$1 AND flow_id IN `+subquery).
			WithArgs(testTenantID, testTenantID, id).
			WillReturnResult(sqlmock.NewResult(0, 5))
		mock.ExpectExec(`DELETE FROM `+nodesSQL+` WHERE tenant_id = \$1 AND flow_id IN `+subquery).
			WithArgs(testTenantID, testTenantID, id).
			WillReturnResult(sqlmock.NewResult(0, 6))
		mock.ExpectExec(`DELETE FROM `+flowsSQL+` WHERE tenant_id = \$1 AND chatbot_id = \$2`).
			WithArgs(testTenantID, id).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`DELETE FROM `+chatbotsSQL+` WHERE tenant_id = \$1 AND id = \$2`).
			WithArgs(testTenantID, id).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, repo.DeleteForTenant(context.Background(), testTenantID, id))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing chatbot rolls everything back", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormChatbotRepository(gormDB)

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM ` + edgesSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM ` + nodesSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM ` + flowsSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM ` + chatbotsSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.DeleteForTenant(context.Background(), testTenantID, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormChatbotRepository_FindAllForTenant(t *testing.T) {
	gormDB, mock, mockDB := newMockGormDB(t)
	defer mockDB.Close()
	repo := NewGormChatbotRepository(gormDB)

	filter := shared.DefaultFilter().With("channel", "telegram").With("is_enabled", true)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT \* FROM `+chatbotsSQL+` WHERE tenant_id = \$1 AND channel = \$2 AND is_enabled = \$3 ORDER BY created_at DESC`).
		WithArgs(testTenantID, "telegram", true, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "description", "channel", "is_enabled", "created_at", "updated_at"}).
			AddRow(uuid.New().String(), testTenantID.String(), "Support bot", "", "telegram", true, now, now))

	bots, err := repo.FindAllForTenant(context.Background(), testTenantID, filter)

	require.NoError(t, err)
	require.Len(t, bots, 1)
	assert.Equal(t, chatbot.ChannelTelegram, bots[0].Channel)
	assert.NoError(t, mock.ExpectationsWereMet())
}
