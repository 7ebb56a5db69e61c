package arangodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
)

var ErrNotFound = errors.New("document not found")

// Client manages the ArangoDB connection backing the graph retrieval
// backend. Ingestion of documents and edges is an external collaborator's
// concern; this client only guarantees the database, collections, and
// graph exist and hands the database out for read queries.
type Client interface {
	// Setup operations
	EnsureDatabase(ctx context.Context) error
	EnsureCollections(ctx context.Context) error
	EnsureGraph(ctx context.Context) error

	// Database exposes the underlying database handle for AQL queries.
	// EnsureDatabase must have been called first.
	Database() arangodb.Database

	// Utility
	Close() error
}

type Config struct {
	URL      string
	Username string
	Password string
	Database string

	// DocumentCollection holds retrievable documents; EdgeCollection
	// links related documents and entities.
	DocumentCollection string
	EdgeCollection     string
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("arangodb URL is required")
	}
	if c.Username == "" {
		return fmt.Errorf("arangodb username is required")
	}
	if c.Database == "" {
		return fmt.Errorf("arangodb database name is required")
	}
	if c.DocumentCollection == "" {
		return fmt.Errorf("arangodb document collection is required")
	}
	if c.EdgeCollection == "" {
		return fmt.Errorf("arangodb edge collection is required")
	}
	return nil
}

type client struct {
	conn         connection.Connection
	arangoClient arangodb.Client
	db           arangodb.Database
	cfg          Config
}

func New(ctx context.Context, cfg Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("arangodb config: %w", err)
	}

	endpoint := connection.NewRoundRobinEndpoints([]string{cfg.URL}) // round robins from the urls. we just have one for now
	conn := connection.NewHttp2Connection(connection.DefaultHTTP2ConfigurationWrapper(endpoint, true))

	auth := connection.NewBasicAuth(cfg.Username, cfg.Password)
	if err := conn.SetAuthentication(auth); err != nil {
		return nil, fmt.Errorf("arangodb auth: %w", err)
	}

	arangoClient := arangodb.NewClient(conn)

	c := &client{
		conn:         conn,
		arangoClient: arangoClient,
		cfg:          cfg,
	}

	return c, nil
}

func (c *client) Close() error {
	return nil
}

func (c *client) Database() arangodb.Database {
	return c.db
}

func (c *client) EnsureDatabase(ctx context.Context) error {
	start := time.Now()

	exists, err := c.arangoClient.DatabaseExists(ctx, c.cfg.Database)
	if err != nil {
		return fmt.Errorf("check database exists: %w", err)
	}

	if !exists {
		_, err = c.arangoClient.CreateDatabase(ctx, c.cfg.Database, nil)
		if err != nil {
			return fmt.Errorf("create database: %w", err)
		}
		slog.InfoContext(ctx, "arangodb database created",
			"database", c.cfg.Database,
			"duration_ms", time.Since(start).Milliseconds())
	}

	db, err := c.arangoClient.GetDatabase(ctx, c.cfg.Database, nil)
	if err != nil {
		return fmt.Errorf("get database: %w", err)
	}
	c.db = db

	return nil
}

func (c *client) EnsureCollections(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized, call EnsureDatabase first")
	}

	if err := c.ensureCollection(ctx, c.cfg.DocumentCollection, false); err != nil {
		return err
	}
	if err := c.ensureCollection(ctx, c.cfg.EdgeCollection, true); err != nil {
		return err
	}

	// Ensure indexes for the search query's filter fields
	if err := c.ensureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	return nil
}

// ensureIndexes creates indexes backing the graph search query.
func (c *client) ensureIndexes(ctx context.Context) error {
	col, err := c.db.GetCollection(ctx, c.cfg.DocumentCollection, nil)
	if err != nil {
		return fmt.Errorf("get collection %s: %w", c.cfg.DocumentCollection, err)
	}

	// Title index - the search query filters on lowered title first
	_, isNew, err := col.EnsurePersistentIndex(ctx, []string{"title"}, &arangodb.CreatePersistentIndexOptions{
		Name: "idx_title",
	})
	if err != nil {
		return fmt.Errorf("ensure title index on %s: %w", c.cfg.DocumentCollection, err)
	}
	if isNew {
		slog.InfoContext(ctx, "arangodb index created", "collection", c.cfg.DocumentCollection, "index", "idx_title")
	}

	// Language index - for the language filter pass
	_, isNew, err = col.EnsurePersistentIndex(ctx, []string{"language"}, &arangodb.CreatePersistentIndexOptions{
		Name: "idx_language",
	})
	if err != nil {
		return fmt.Errorf("ensure language index on %s: %w", c.cfg.DocumentCollection, err)
	}
	if isNew {
		slog.InfoContext(ctx, "arangodb index created", "collection", c.cfg.DocumentCollection, "index", "idx_language")
	}

	return nil
}

func (c *client) ensureCollection(ctx context.Context, name string, isEdge bool) error {
	exists, err := c.db.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s exists: %w", name, err)
	}

	if !exists {
		props := &arangodb.CreateCollectionPropertiesV2{}
		if isEdge {
			colType := arangodb.CollectionTypeEdge
			props.Type = &colType
		} else {
			colType := arangodb.CollectionTypeDocument
			props.Type = &colType
		}

		_, err = c.db.CreateCollectionV2(ctx, name, props)
		if err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
		slog.InfoContext(ctx, "arangodb collection created",
			"collection", name,
			"is_edge", isEdge)
	}

	return nil
}

func (c *client) EnsureGraph(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized, call EnsureDatabase first")
	}

	graphName := "knowledge"

	exists, err := c.db.GraphExists(ctx, graphName)
	if err != nil {
		return fmt.Errorf("check graph exists: %w", err)
	}
	if exists {
		return nil
	}

	graphDef := &arangodb.GraphDefinition{
		Name: graphName,
		EdgeDefinitions: []arangodb.EdgeDefinition{
			{Collection: c.cfg.EdgeCollection, From: []string{c.cfg.DocumentCollection}, To: []string{c.cfg.DocumentCollection}},
		},
	}

	_, err = c.db.CreateGraph(ctx, graphName, graphDef, nil)
	if err != nil {
		return fmt.Errorf("create graph: %w", err)
	}

	slog.InfoContext(ctx, "arangodb graph created", "graph", graphName)
	return nil
}
