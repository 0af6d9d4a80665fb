package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mkoziy/harvester/internal/harvest"
	"github.com/mkoziy/harvester/internal/models"
)

// recordColumns are rewritten on every content write.
var recordColumns = []string{
	"title",
	"pub_date",
	"contact",
	"series",
	"source_url",
	"modified_timestamp",
	"deleted",
}

// WriteRecord inserts or updates a record and replaces every child
// collection the record supplies. Only a failure of the record row itself is
// returned; child failures are logged and skipped.
func (s *Store) WriteRecord(ctx context.Context, rec harvest.Record, repoID int64, domain harvest.DomainMetadata) error {
	if rec.Identifier == "" {
		return ErrInvalidRecord
	}
	recordID, err := s.upsertRecord(ctx, rec, repoID)
	if err != nil {
		return fmt.Errorf("write record %s: %w", rec.Identifier, err)
	}

	log := s.log.With(zap.Int64("repository_id", repoID), zap.String("identifier", rec.Identifier))
	w := &childWriter{db: s.db, log: log, recordID: recordID}

	if rec.Creators != nil {
		w.creators(ctx, rec.Creators, false)
	}
	if rec.Contributors != nil {
		w.creators(ctx, rec.Contributors, true)
	}
	if rec.Subjects != nil {
		w.subjects(ctx, rec.Subjects)
	}
	if rec.Publishers != nil {
		w.publishers(ctx, rec.Publishers)
	}
	if rec.Rights != nil {
		w.rights(ctx, rec.Rights)
	}
	if rec.Access != nil {
		w.access(ctx, rec.Access)
	}
	if rec.Descriptions != nil {
		w.descriptions(ctx, rec.Descriptions, models.LangEnglish)
	}
	if rec.DescriptionsFr != nil {
		w.descriptions(ctx, rec.DescriptionsFr, models.LangFrench)
	}
	if rec.Tags != nil {
		w.tags(ctx, rec.Tags, models.LangEnglish)
	}
	if rec.TagsFr != nil {
		w.tags(ctx, rec.TagsFr, models.LangFrench)
	}
	if rec.Geospatial != nil {
		w.geospatial(ctx, rec.Geospatial)
	}
	if len(domain) > 0 {
		s.writeDomainMetadata(ctx, w, domain)
	}
	if w.failures > 0 {
		log.Warn("record written with skipped child rows", zap.Int("failures", w.failures))
	}
	return nil
}

func (s *Store) upsertRecord(ctx context.Context, rec harvest.Record, repoID int64) (int64, error) {
	row := &models.Record{
		RepositoryID:      repoID,
		LocalIdentifier:   rec.Identifier,
		Title:             rec.Title,
		PubDate:           rec.PubDate,
		Contact:           rec.Contact,
		Series:            rec.Series,
		SourceURL:         rec.SourceURL(),
		ModifiedTimestamp: models.Epoch(s.now()),
	}

	id, err := s.recordID(ctx, repoID, rec.Identifier)
	if errors.Is(err, ErrNotFound) {
		_, err = s.db.NewInsert().Model(row).Returning("record_id").Exec(ctx)
		if err == nil {
			return row.ID, nil
		}
		if !isUniqueViolation(err) {
			return 0, err
		}
		s.log.Warn("record inserted concurrently, updating existing row",
			zap.String("identifier", rec.Identifier), zap.Error(err))
		id, err = s.recordID(ctx, repoID, rec.Identifier)
	}
	if err != nil {
		return 0, err
	}

	row.ID = id
	if _, err := s.db.NewUpdate().Model(row).Column(recordColumns...).WherePK().Exec(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) recordID(ctx context.Context, repoID int64, identifier string) (int64, error) {
	var id int64
	err := s.db.NewSelect().
		Model((*models.Record)(nil)).
		Column("record_id").
		Where("local_identifier = ?", identifier).
		Where("repository_id = ?", repoID).
		Scan(ctx, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

// GetRecord returns the record row, including soft-deleted ones.
func (s *Store) GetRecord(ctx context.Context, repoID int64, identifier string) (*models.Record, error) {
	rec := new(models.Record)
	err := s.db.NewSelect().
		Model(rec).
		Where("local_identifier = ?", identifier).
		Where("repository_id = ?", repoID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// WriteHeader registers an identifier with empty fields and a zero modified
// timestamp, so the next staleness pass fetches its metadata. An identifier
// already present is left alone; the result reports whether a row was added.
func (s *Store) WriteHeader(ctx context.Context, identifier string, repoID int64) (bool, error) {
	if identifier == "" {
		return false, ErrInvalidRecord
	}
	res, err := s.db.NewInsert().
		Model(&models.Record{RepositoryID: repoID, LocalIdentifier: identifier}).
		On("CONFLICT (local_identifier, repository_id) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("write header %s: %w", identifier, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// TouchRecord confirms a record is still present without rewriting it.
func (s *Store) TouchRecord(ctx context.Context, rec *models.Record) error {
	ts := models.Epoch(s.now())
	_, err := s.db.NewUpdate().
		Model((*models.Record)(nil)).
		Set("modified_timestamp = ?", ts).
		Where("record_id = ?", rec.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("touch record %s: %w", rec.LocalIdentifier, err)
	}
	rec.ModifiedTimestamp = ts
	return nil
}

// DeleteRecord soft-deletes a record: the row stays with deleted set and a
// fresh modified timestamp, and every child row is purged. It reports false
// when the record could not be marked or its children could not be purged;
// the cause is logged at warn level and the caller reports the failure.
func (s *Store) DeleteRecord(ctx context.Context, rec *models.Record) bool {
	if rec == nil || rec.ID == 0 {
		return false
	}
	log := s.log.With(zap.Int64("record_id", rec.ID), zap.String("identifier", rec.LocalIdentifier))

	ts := models.Epoch(s.now())
	_, err := s.db.NewUpdate().
		Model((*models.Record)(nil)).
		Set("deleted = ?", true).
		Set("modified_timestamp = ?", ts).
		Where("record_id = ?", rec.ID).
		Exec(ctx)
	if err != nil {
		log.Warn("unable to mark record as deleted", zap.Error(err))
		return false
	}
	rec.Deleted = true
	rec.ModifiedTimestamp = ts

	w := &childWriter{db: s.db, log: log, recordID: rec.ID}
	if err := w.purge(ctx); err != nil {
		log.Warn("unable to purge child rows of deleted record", zap.Error(err))
		return false
	}
	log.Debug("marked record as deleted")
	return true
}

// StaleRecords returns at most limit live records of the repository whose
// modified timestamp is strictly before cutoff, oldest first.
func (s *Store) StaleRecords(ctx context.Context, cutoff time.Time, repoID int64, limit int) ([]models.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	var recs []models.Record
	err := s.db.NewSelect().
		Model(&recs).
		Where("repository_id = ?", repoID).
		Where("modified_timestamp < ?", models.Epoch(cutoff)).
		Where("deleted = ?", false).
		OrderExpr("modified_timestamp ASC, record_id ASC").
		Limit(limit).
		Scan(ctx)
	return recs, err
}

// CountRecords counts the repository's records, soft-deleted ones included.
func (s *Store) CountRecords(ctx context.Context, repoID int64) (int, error) {
	return s.db.NewSelect().
		Model((*models.Record)(nil)).
		Where("repository_id = ?", repoID).
		Count(ctx)
}

// RecordChildren loads every child collection of one record.
func (s *Store) RecordChildren(ctx context.Context, recordID int64) (*models.RecordChildren, error) {
	c := new(models.RecordChildren)
	loads := []struct {
		name  string
		dest  any
		order string
	}{
		{"creators", &c.Creators, "creator_id"},
		{"subjects", &c.Subjects, "subject_id"},
		{"publishers", &c.Publishers, "publisher_id"},
		{"rights", &c.Rights, "rights_id"},
		{"access", &c.Access, "access_id"},
		{"descriptions", &c.Descriptions, "description_id"},
		{"tags", &c.Tags, "tag_id"},
		{"geospatial", &c.Geospatial, "geospatial_id"},
	}
	for _, l := range loads {
		err := s.db.NewSelect().
			Model(l.dest).
			Where("record_id = ?", recordID).
			OrderExpr(l.order).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", l.name, err)
		}
	}

	err := s.db.NewSelect().
		TableExpr("domain_metadata AS dm").
		Join("JOIN domain_schemas AS ds ON ds.schema_id = dm.schema_id").
		ColumnExpr("ds.namespace, dm.field_name, dm.field_value").
		Where("dm.record_id = ?", recordID).
		OrderExpr("dm.metadata_id").
		Scan(ctx, &c.DomainMetadata)
	if err != nil {
		return nil, fmt.Errorf("load domain metadata: %w", err)
	}
	return c, nil
}

// IterateRecords streams records modified at or after since (all records
// when since is zero) in record_id order, batch rows at a time. Soft-deleted
// records are included so exports can emit tombstones.
func (s *Store) IterateRecords(ctx context.Context, since time.Time, batch int, fn func(*models.Record) error) error {
	if batch <= 0 {
		batch = 500
	}
	var lastID int64
	for {
		var recs []models.Record
		q := s.db.NewSelect().
			Model(&recs).
			Relation("Repository").
			Where("r.record_id > ?", lastID).
			OrderExpr("r.record_id ASC").
			Limit(batch)
		if !since.IsZero() {
			q = q.Where("r.modified_timestamp >= ?", models.Epoch(since))
		}
		if err := q.Scan(ctx); err != nil {
			return err
		}
		for i := range recs {
			if err := fn(&recs[i]); err != nil {
				return err
			}
		}
		if len(recs) < batch {
			return nil
		}
		lastID = recs[len(recs)-1].ID
	}
}
