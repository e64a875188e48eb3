// Package graph mirrors the catalog similarity neighborhoods into Neo4j so
// that they can be explored and joined with other graph data.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/temcen/glowrank/internal/ranking"
	"github.com/temcen/glowrank/pkg/models"
)

const defaultBatchSize = 500

// SimilarityGraph writes (:Product)-[:SIMILAR_TO]->(:Product) edges. A nil
// driver disables it; every method is then a no-op.
type SimilarityGraph struct {
	driver    neo4j.DriverWithContext
	batchSize int
	logger    *logrus.Logger
}

// NewSimilarityGraph creates a graph writer.
func NewSimilarityGraph(driver neo4j.DriverWithContext, batchSize int, logger *logrus.Logger) *SimilarityGraph {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &SimilarityGraph{driver: driver, batchSize: batchSize, logger: logger}
}

// Enabled reports whether a driver is configured.
func (g *SimilarityGraph) Enabled() bool {
	return g != nil && g.driver != nil
}

// Edge is one directed similarity link.
type Edge struct {
	From       string
	To         string
	Similarity float64
}

// Edges lists the neighborhood links of idx, excluding self links.
func Edges(idx *ranking.Index) []Edge {
	var edges []Edge
	items := idx.Items()
	sims := idx.Similarity()
	for p := range items {
		for _, q := range idx.Neighborhood(p) {
			if q == p {
				continue
			}
			edges = append(edges, Edge{From: items[p].ID, To: items[q].ID, Similarity: sims.At(p, q)})
		}
	}
	return edges
}

// Sync replaces the stored similarity edges with those of idx.
func (g *SimilarityGraph) Sync(ctx context.Context, idx *ranking.Index) error {
	if !g.Enabled() {
		return nil
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	products := make([]map[string]interface{}, 0, idx.Len())
	for _, item := range idx.Items() {
		products = append(products, map[string]interface{}{
			"id":       item.ID,
			"name":     item.Name,
			"brand":    item.Brand,
			"category": item.Category,
		})
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		cypher := `
			UNWIND $products AS p
			MERGE (n:Product {id: p.id})
			SET n.name = p.name, n.brand = p.brand, n.category = p.category
			WITH n
			OPTIONAL MATCH (n)-[r:SIMILAR_TO]->()
			DELETE r`
		result, err := tx.Run(ctx, cypher, map[string]interface{}{"products": products})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to reset product nodes: %w", err)
	}

	edges := Edges(idx)
	for start := 0; start < len(edges); start += g.batchSize {
		end := start + g.batchSize
		if end > len(edges) {
			end = len(edges)
		}
		if err := g.writeEdges(ctx, session, idx.Version(), edges[start:end]); err != nil {
			return err
		}
	}

	g.logger.WithFields(logrus.Fields{
		"version":  idx.Version(),
		"products": len(products),
		"edges":    len(edges),
	}).Info("Similarity graph synced")
	return nil
}

func (g *SimilarityGraph) writeEdges(ctx context.Context, session neo4j.SessionWithContext, version string, batch []Edge) error {
	rows := make([]map[string]interface{}, len(batch))
	for i, e := range batch {
		rows[i] = map[string]interface{}{
			"from":       e.From,
			"to":         e.To,
			"similarity": e.Similarity,
		}
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		cypher := `
			UNWIND $edges AS e
			MATCH (a:Product {id: e.from}), (b:Product {id: e.to})
			MERGE (a)-[r:SIMILAR_TO]->(b)
			SET r.score = e.similarity, r.index_version = $version, r.updated_at = datetime()`
		result, err := tx.Run(ctx, cypher, map[string]interface{}{
			"edges":   rows,
			"version": version,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		g.logger.WithError(err).WithField("batch_size", len(batch)).Error("Failed to write similarity edges")
		return fmt.Errorf("failed to write similarity edges: %w", err)
	}
	return nil
}

// Neighbors reads the stored neighbors of an item, most similar first.
// A non-positive limit returns all of them.
func (g *SimilarityGraph) Neighbors(ctx context.Context, itemID string, limit int) ([]models.Neighbor, error) {
	if !g.Enabled() {
		return nil, nil
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		cypher := `
			MATCH (:Product {id: $item_id})-[s:SIMILAR_TO]->(other:Product)
			RETURN other.id AS item_id, s.score AS score
			ORDER BY s.score DESC`
		params := map[string]interface{}{"item_id": itemID}
		if limit > 0 {
			cypher += "\n\t\t\tLIMIT $limit"
			params["limit"] = limit
		}
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		var neighbors []models.Neighbor
		for result.Next(ctx) {
			record := result.Record()
			id, _ := record.Get("item_id")
			score, _ := record.Get("score")
			idStr, ok := id.(string)
			if !ok {
				continue
			}
			s, _ := score.(float64)
			neighbors = append(neighbors, models.Neighbor{ItemID: idStr, Similarity: s})
		}
		return neighbors, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read similar products: %w", err)
	}
	return result.([]models.Neighbor), nil
}
