package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"github.com/secmon-lab/syllabus/pkg/repository/firestore"
	"github.com/secmon-lab/syllabus/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var projectID string
	var databaseID string
	var collectionPrefix string
	var dimension int
	var dryRun bool

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate Firestore indexes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "firestore-project-id",
				Usage:       "Firestore Project ID (required)",
				Required:    true,
				Sources:     cli.EnvVars("SYLLABUS_FIRESTORE_PROJECT_ID"),
				Destination: &projectID,
			},
			&cli.StringFlag{
				Name:        "firestore-database-id",
				Usage:       "Firestore Database ID",
				Sources:     cli.EnvVars("SYLLABUS_FIRESTORE_DATABASE_ID"),
				Destination: &databaseID,
			},
			&cli.StringFlag{
				Name:        "collection-prefix",
				Usage:       "Prefix of collection names",
				Sources:     cli.EnvVars("SYLLABUS_COLLECTION_PREFIX"),
				Destination: &collectionPrefix,
			},
			&cli.IntFlag{
				Name:        "embedding-dimension",
				Usage:       "Embedding vector size of the vector indexes",
				Value:       model.EmbeddingDimension,
				Sources:     cli.EnvVars("SYLLABUS_EMBEDDING_DIMENSION"),
				Destination: &dimension,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Preview changes without applying",
				Destination: &dryRun,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			logger.Info("Migrate configuration",
				"projectID", projectID,
				"databaseID", databaseID,
				"collectionPrefix", collectionPrefix,
				"dimension", dimension,
				"dryRun", dryRun)

			indexConfig := getIndexConfig(collectionPrefix, dimension)

			client, err := fireconf.NewClient(ctx, projectID, databaseID)
			if err != nil {
				return goerr.Wrap(err, "failed to create fireconf client")
			}
			defer func() {
				if err := client.Close(); err != nil {
					logger.Error("failed to close fireconf client", "error", err.Error())
				}
			}()

			if dryRun {
				logger.Info("Dry run mode - previewing changes")
				plan, err := client.GetMigrationPlan(ctx, indexConfig)
				if err != nil {
					return goerr.Wrap(err, "failed to create migration plan")
				}

				if len(plan.Steps) == 0 {
					logger.Info("No changes required")
					return nil
				}

				for _, step := range plan.Steps {
					logger.Info("Migration step",
						"collection", step.Collection,
						"operation", step.Operation,
						"description", step.Description,
						"destructive", step.Destructive)
				}
			} else {
				logger.Info("Applying migrations")
				if err := client.Migrate(ctx, indexConfig); err != nil {
					return goerr.Wrap(err, "failed to apply migrations")
				}
				logger.Info("Migrations applied successfully")
			}

			return nil
		},
	}
}

// getIndexConfig returns the Firestore index configuration for the catalog
// and content collections.
func getIndexConfig(prefix string, dimension int) *fireconf.Config {
	vector := func() fireconf.IndexField {
		return fireconf.IndexField{
			Path:   "embedding",
			Vector: &fireconf.VectorConfig{Dimension: dimension},
		}
	}

	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: prefix + firestore.CatalogCollection,
				Indexes: []fireconf.Index{
					// Course name resolution
					{Fields: []fireconf.IndexField{vector()}},
				},
			},
			{
				Name: prefix + firestore.ContentCollection,
				Indexes: []fireconf.Index{
					// Unfiltered search
					{Fields: []fireconf.IndexField{vector()}},
					// Search within a course
					{
						Fields: []fireconf.IndexField{
							{Path: "course_title", Order: fireconf.OrderAscending},
							vector(),
						},
					},
					// Search within a lesson
					{
						Fields: []fireconf.IndexField{
							{Path: "course_title", Order: fireconf.OrderAscending},
							{Path: "lesson_number", Order: fireconf.OrderAscending},
							vector(),
						},
					},
					// Search by lesson across courses
					{
						Fields: []fireconf.IndexField{
							{Path: "lesson_number", Order: fireconf.OrderAscending},
							vector(),
						},
					},
				},
			},
		},
	}
}
