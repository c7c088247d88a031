package records

import "github.com/carebridge/carebridge-core/internal/models"

// Elder cache rows never enqueue sync work: the device does not mutate
// elder data, it only refreshes the projection.

// GetElder retrieves a cached elder by remote id.
func (r *Records) GetElder(serverID string) (*models.ElderCache, error) {
	e, err := r.repo.GetElderByServerID(serverID)
	if err != nil {
		return nil, notFound(err, "elder", serverID)
	}
	return e, nil
}

// UpsertElder replaces a cached elder wholesale and stamps cached_at.
func (r *Records) UpsertElder(e *models.ElderCache) error {
	return r.repo.UpsertElder(r.database, e)
}
