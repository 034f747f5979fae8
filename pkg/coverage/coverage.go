package coverage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"flico/pkg/logger"
	"flico/pkg/models"
	"flico/pkg/storage"
)

// Source is the slice of the Flickr client the assessor needs.
type Source interface {
	GetInstitutions(ctx context.Context) ([]models.Institution, error)
	CountPhotos(ctx context.Context, userID string) (int, error)
}

// Assessment compares one institution's remote catalogue with its store.
type Assessment struct {
	Institution models.Institution
	RemoteTotal int
	LocalUnique int
	Coverage    float64
	Path        string
}

// CollisionError reports institutions whose names map to the same store file.
type CollisionError struct {
	Filename     string
	Institutions []models.Institution
}

func (e *CollisionError) Error() string {
	names := make([]string, len(e.Institutions))
	for i, inst := range e.Institutions {
		names[i] = fmt.Sprintf("%q (%s)", inst.Name, inst.ID)
	}
	return fmt.Sprintf("store filename collision on %s: %s", e.Filename, strings.Join(names, ", "))
}

// Assessor measures per-institution coverage. It never writes to a store.
type Assessor struct {
	source  Source
	storage *storage.Manager
	logger  logger.Logger
}

// NewAssessor creates an assessor over the given client and metadata directory
func NewAssessor(source Source, store *storage.Manager, log logger.Logger) *Assessor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Assessor{
		source:  source,
		storage: store,
		logger:  log.WithField("component", "coverage"),
	}
}

// Ratio returns local/remote, or 1 when the remote total is not positive.
func Ratio(local, remote int) float64 {
	if remote <= 0 {
		return 1.0
	}
	return float64(local) / float64(remote)
}

// Assess lists the institutions, measures each one and returns them least
// covered first. Failing to list institutions is fatal; failing to count one
// institution only drops it.
func (a *Assessor) Assess(ctx context.Context) ([]Assessment, error) {
	institutions, err := a.source.GetInstitutions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list institutions: %w", err)
	}

	a.logger.InfoWithFields("Assessing coverage", map[string]interface{}{
		"institutions": len(institutions),
	})

	if err := checkCollisions(institutions); err != nil {
		return nil, err
	}

	assessments := make([]Assessment, 0, len(institutions))
	for _, inst := range institutions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log := a.logger.WithFields(map[string]interface{}{
			"institution": inst.Name,
			"nsid":        inst.ID,
		})

		path := a.storage.PathFor(inst)
		if path == "" {
			log.Error("Institution name has no usable filename, skipping")
			continue
		}

		remote, err := a.source.CountPhotos(ctx, inst.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithError(err).Warn("Failed to count remote photos, skipping")
			continue
		}

		local, err := storage.Open(path).CountUnique()
		if err != nil {
			log.WithError(err).Warn("Failed to read store, counting it as empty")
			local = 0
		}

		assessments = append(assessments, Assessment{
			Institution: inst,
			RemoteTotal: remote,
			LocalUnique: local,
			Coverage:    Ratio(local, remote),
			Path:        path,
		})

		log.DebugWithFields("Institution assessed", map[string]interface{}{
			"remote": remote,
			"local":  local,
		})
	}

	Prioritize(assessments)
	return assessments, nil
}

// Prioritize sorts in place by ascending coverage, then ascending remote
// total. Ties keep their input order.
func Prioritize(assessments []Assessment) {
	sort.SliceStable(assessments, func(i, j int) bool {
		if assessments[i].Coverage != assessments[j].Coverage {
			return assessments[i].Coverage < assessments[j].Coverage
		}
		return assessments[i].RemoteTotal < assessments[j].RemoteTotal
	})
}

func checkCollisions(institutions []models.Institution) error {
	seen := make(map[string][]models.Institution)
	var order []string
	for _, inst := range institutions {
		name := inst.Filename()
		if name == "" {
			continue
		}
		if _, ok := seen[name]; !ok {
			order = append(order, name)
		}
		seen[name] = append(seen[name], inst)
	}

	for _, name := range order {
		if len(seen[name]) > 1 {
			return &CollisionError{Filename: name, Institutions: seen[name]}
		}
	}
	return nil
}
