package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/harvester/internal/harvest"
	"github.com/mkoziy/harvester/internal/models"
)

// skippedSubject is a Dataverse facet marker, not a subject.
const skippedSubject = "form_descriptors"

// childWriter replaces the child collections of one record. Every operation
// is attempted independently; failures are logged and counted, never returned
// to the record write.
type childWriter struct {
	db       bun.IDB
	log      *zap.Logger
	recordID int64
	failures int
}

// replaceRows deletes the rows selected by scope and inserts rows in their
// place. If the batch insert fails, rows are retried one at a time so a
// single bad value does not drop the rest of the collection.
func replaceRows[T any](ctx context.Context, w *childWriter, table string, scope func(*bun.DeleteQuery) *bun.DeleteQuery, rows []T) {
	log := w.log.With(zap.String("table", table))

	del := scope(w.db.NewDelete().Model((*T)(nil)).Where("record_id = ?", w.recordID))
	if _, err := del.Exec(ctx); err != nil {
		w.failures++
		log.Warn("unable to clear child rows", zap.Error(err))
		return
	}
	if len(rows) == 0 {
		return
	}
	if _, err := w.db.NewInsert().Model(&rows).Exec(ctx); err == nil {
		return
	}
	for i := range rows {
		if _, err := w.db.NewInsert().Model(&rows[i]).Exec(ctx); err != nil {
			w.failures++
			log.Warn("unable to insert child row", zap.Error(err))
		}
	}
}

func unscoped(q *bun.DeleteQuery) *bun.DeleteQuery { return q }

func (w *childWriter) creators(ctx context.Context, names []string, contributor bool) {
	var rows []models.Creator
	for _, n := range harvest.CleanValues(names) {
		rows = append(rows, models.Creator{RecordID: w.recordID, Creator: n, IsContributor: contributor})
	}
	replaceRows(ctx, w, "creators", func(q *bun.DeleteQuery) *bun.DeleteQuery {
		return q.Where("is_contributor = ?", contributor)
	}, rows)
}

func (w *childWriter) subjects(ctx context.Context, values []string) {
	var rows []models.Subject
	for _, v := range harvest.CleanValues(values) {
		if v == skippedSubject {
			continue
		}
		rows = append(rows, models.Subject{RecordID: w.recordID, Subject: v})
	}
	replaceRows(ctx, w, "subjects", unscoped, rows)
}

func (w *childWriter) publishers(ctx context.Context, values []string) {
	var rows []models.Publisher
	for _, v := range harvest.CleanValues(values) {
		rows = append(rows, models.Publisher{RecordID: w.recordID, Publisher: v})
	}
	replaceRows(ctx, w, "publishers", unscoped, rows)
}

func (w *childWriter) rights(ctx context.Context, values []string) {
	var rows []models.Rights
	for _, v := range harvest.CleanValues(values) {
		rows = append(rows, models.Rights{RecordID: w.recordID, Rights: v})
	}
	replaceRows(ctx, w, "rights", unscoped, rows)
}

func (w *childWriter) access(ctx context.Context, values []string) {
	var rows []models.Access
	for _, v := range harvest.CleanValues(values) {
		rows = append(rows, models.Access{RecordID: w.recordID, Access: v})
	}
	replaceRows(ctx, w, "access", unscoped, rows)
}

func (w *childWriter) descriptions(ctx context.Context, values []string, lang models.Language) {
	var rows []models.Description
	for _, v := range harvest.CleanValues(values) {
		rows = append(rows, models.Description{RecordID: w.recordID, Description: v, Language: lang})
	}
	replaceRows(ctx, w, "descriptions", func(q *bun.DeleteQuery) *bun.DeleteQuery {
		return q.Where("language = ?", lang)
	}, rows)
}

func (w *childWriter) tags(ctx context.Context, values []string, lang models.Language) {
	var rows []models.Tag
	for _, v := range harvest.CleanValues(values) {
		rows = append(rows, models.Tag{RecordID: w.recordID, Tag: v, Language: lang})
	}
	replaceRows(ctx, w, "tags", func(q *bun.DeleteQuery) *bun.DeleteQuery {
		return q.Where("language = ?", lang)
	}, rows)
}

func (w *childWriter) geospatial(ctx context.Context, g *harvest.Geometry) {
	rows := make([]models.Geospatial, 0, len(g.Points))
	for _, p := range g.Points {
		rows = append(rows, models.Geospatial{RecordID: w.recordID, CoordinateType: g.Type, Lat: p.Lat, Lon: p.Lon})
	}
	replaceRows(ctx, w, "geospatial", unscoped, rows)
}

// purge removes every child row of the record. It keeps going after a
// failing table and returns the joined errors.
func (w *childWriter) purge(ctx context.Context) error {
	tables := []any{
		(*models.Creator)(nil),
		(*models.Subject)(nil),
		(*models.Publisher)(nil),
		(*models.Rights)(nil),
		(*models.Access)(nil),
		(*models.Description)(nil),
		(*models.Tag)(nil),
		(*models.Geospatial)(nil),
		(*models.DomainMetadata)(nil),
	}
	var errs []error
	for _, model := range tables {
		if _, err := w.db.NewDelete().Model(model).Where("record_id = ?", w.recordID).Exec(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", model, err))
		}
	}
	return errors.Join(errs...)
}
