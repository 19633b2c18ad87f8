package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/domain/interfaces"
	"github.com/secmon-lab/syllabus/pkg/repository/firestore"
	"github.com/secmon-lab/syllabus/pkg/repository/memory"
	"github.com/secmon-lab/syllabus/pkg/repository/milvus"
	"github.com/secmon-lab/syllabus/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendMilvus    = "milvus"
)

// Repository holds CLI flags for the vector index backend
type Repository struct {
	backend          string
	projectID        string
	databaseID       string
	milvusAddr       string
	collectionPrefix string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Vector index backend (memory, firestore, milvus)",
			Value:       BackendMemory,
			Category:    "Repository",
			Sources:     cli.EnvVars("SYLLABUS_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("SYLLABUS_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Category:    "Repository",
			Sources:     cli.EnvVars("SYLLABUS_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "milvus-addr",
			Usage:       "Milvus address (required when using milvus backend)",
			Value:       "localhost:19530",
			Category:    "Repository",
			Sources:     cli.EnvVars("SYLLABUS_MILVUS_ADDR"),
			Destination: &r.milvusAddr,
		},
		&cli.StringFlag{
			Name:        "collection-prefix",
			Usage:       "Prefix of collection names, to share one database between deployments",
			Category:    "Repository",
			Sources:     cli.EnvVars("SYLLABUS_COLLECTION_PREFIX"),
			Destination: &r.collectionPrefix,
		},
	}
}

// LogAttrs returns log attributes for the repository configuration
func (r *Repository) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("backend", r.backend),
		slog.String("firestore_project_id", r.projectID),
		slog.String("firestore_database_id", r.databaseID),
		slog.String("milvus_addr", r.milvusAddr),
		slog.String("collection_prefix", r.collectionPrefix),
	}
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// ProjectID returns the Firestore project ID
func (r *Repository) ProjectID() string {
	return r.projectID
}

// DatabaseID returns the Firestore database ID
func (r *Repository) DatabaseID() string {
	return r.databaseID
}

// Configure initializes the repository for the configured backend. dimension
// is the embedding size, used to create milvus collections.
// The caller is responsible for calling Close() on the returned repository.
func (r *Repository) Configure(ctx context.Context, dimension int) (interfaces.Repository, error) {
	switch r.backend {
	case BackendFirestore:
		if r.projectID == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "firestore-project-id is required when using firestore backend")
		}
		repo, err := firestore.New(ctx, r.projectID, r.databaseID, firestore.WithCollectionPrefix(r.collectionPrefix))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logging.Default().Info("Using Firestore repository",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		return repo, nil

	case BackendMilvus:
		if r.milvusAddr == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "milvus-addr is required when using milvus backend")
		}
		repo, err := milvus.New(ctx, r.milvusAddr, dimension, milvus.WithCollectionPrefix(r.collectionPrefix))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize milvus repository")
		}
		logging.Default().Info("Using Milvus repository", "addr", r.milvusAddr, "dimension", dimension)
		return repo, nil

	case BackendMemory:
		logging.Default().Info("Using in-memory repository (development mode)")
		return memory.New(), nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid repository backend", goerr.V(BackendKey, r.backend))
	}
}
