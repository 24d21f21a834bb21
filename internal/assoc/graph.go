package assoc

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/nidhogg/noema/internal/symbol"
	"go.uber.org/zap"
)

// Graph mirrors the symbol binding table into Neo4j so association chains
// can be inspected with graph queries. The mirror is best-effort and
// write-only from the engine's point of view: the in-memory binding table
// stays authoritative.
type Graph struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// New connects to Neo4j and returns a binding graph mirror.
func New(uri, user, password string, logger *zap.Logger) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(context.Background()); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Graph{driver: driver, logger: logger}, nil
}

// Sync upserts the given bindings. Failures are logged and swallowed.
func (g *Graph) Sync(bindings []symbol.Binding) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	for _, b := range bindings {
		_, err := session.Run(ctx,
			`MERGE (a:Concept {name: $a})
			 MERGE (b:Concept {name: $b})
			 MERGE (a)-[r:BOUND_TO]-(b)
			 SET r.strength = $strength, r.updated_at = datetime()`,
			map[string]interface{}{
				"a":        b.A,
				"b":        b.B,
				"strength": b.Strength,
			})
		if err != nil {
			g.logger.Debug("binding sync failed",
				zap.String("a", b.A), zap.String("b", b.B), zap.Error(err))
			return
		}
	}
	g.logger.Debug("binding graph synced", zap.Int("bindings", len(bindings)))
}

// Neighbors returns the concepts bound to the given one, strongest first.
func (g *Graph) Neighbors(ctx context.Context, concept string, limit int) ([]symbol.Binding, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (a:Concept {name: $name})-[r:BOUND_TO]-(b:Concept)
		 RETURN b.name AS name, r.strength AS strength
		 ORDER BY r.strength DESC LIMIT $limit`,
		map[string]interface{}{"name": concept, "limit": limit})
	if err != nil {
		return nil, err
	}

	var out []symbol.Binding
	for result.Next(ctx) {
		rec := result.Record()
		b := symbol.Binding{A: concept}
		if v, ok := rec.Get("name"); ok && v != nil {
			b.B = v.(string)
		}
		if v, ok := rec.Get("strength"); ok && v != nil {
			b.Strength = v.(float64)
		}
		out = append(out, b)
	}
	return out, nil
}

// Close shuts down the Neo4j driver.
func (g *Graph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}
