package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/kabili207/mesh-web-client/pkg/models"
)

var selectNodes = `SELECT * FROM nodes`

type NodeStore interface {
	Save(node *models.NodeInfo) error
	Get(owner, nodeNum uint32) (*models.NodeInfo, error)
	GetAll(owner uint32) ([]*models.NodeInfo, error)
}

type sqliteNodeStore struct {
	db *sqlx.DB
}

func NewNodeStore(db *sqlx.DB) NodeStore {
	return &sqliteNodeStore{db: db}
}

// Save inserts or updates a node. Names, position and battery are only
// replaced when the new record carries them.
func (s *sqliteNodeStore) Save(node *models.NodeInfo) error {
	stmt := `
	INSERT INTO nodes (owner, node_num, long_name, short_name, hw_model, latitude, longitude, battery_level, last_heard)
	VALUES (:owner, :node_num, :long_name, :short_name, :hw_model, :latitude, :longitude, :battery_level, :last_heard)
	ON CONFLICT (owner, node_num)
	DO UPDATE SET
		long_name = COALESCE(NULLIF(excluded.long_name, ''), nodes.long_name),
		short_name = COALESCE(NULLIF(excluded.short_name, ''), nodes.short_name),
		hw_model = COALESCE(NULLIF(excluded.hw_model, ''), nodes.hw_model),
		latitude = COALESCE(excluded.latitude, nodes.latitude),
		longitude = COALESCE(excluded.longitude, nodes.longitude),
		battery_level = COALESCE(excluded.battery_level, nodes.battery_level),
		last_heard = COALESCE(excluded.last_heard, nodes.last_heard)
	;`

	if node.LastHeard != nil {
		t := node.LastHeard.UTC()
		node.LastHeard = &t
	}
	_, err := s.db.NamedExec(stmt, node)
	return err
}

func (s *sqliteNodeStore) Get(owner, nodeNum uint32) (*models.NodeInfo, error) {
	query := selectNodes + " WHERE owner = ? AND node_num = ?;"
	var node models.NodeInfo
	err := s.db.Get(&node, query, owner, nodeNum)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (s *sqliteNodeStore) GetAll(owner uint32) ([]*models.NodeInfo, error) {
	query := selectNodes + " WHERE owner = ? ORDER BY node_num;"
	nodes := []*models.NodeInfo{}
	if err := s.db.Select(&nodes, query, owner); err != nil {
		return nil, err
	}
	return nodes, nil
}
