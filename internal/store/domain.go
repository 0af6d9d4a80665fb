package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mkoziy/harvester/internal/harvest"
	"github.com/mkoziy/harvester/internal/models"
)

// DomainSchemaID returns the id registered for namespace, or 0 when the
// namespace is unknown.
func (s *Store) DomainSchemaID(ctx context.Context, namespace string) (int64, error) {
	var id int64
	err := s.db.NewSelect().
		Model((*models.DomainSchema)(nil)).
		Column("schema_id").
		Where("namespace = ?", namespace).
		Scan(ctx, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// CreateDomainSchema registers namespace and returns its id. An existing
// namespace returns its id unchanged. When a concurrent writer wins the
// insert race it returns 0 with no error; the caller repeats the lookup.
func (s *Store) CreateDomainSchema(ctx context.Context, namespace string) (int64, error) {
	if namespace == "" {
		return 0, errors.New("empty domain schema namespace")
	}
	id, err := s.DomainSchemaID(ctx, namespace)
	if err != nil || id != 0 {
		return id, err
	}

	schema := &models.DomainSchema{Namespace: namespace}
	if _, err := s.db.NewInsert().Model(schema).Returning("schema_id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			s.log.Warn("domain schema created concurrently", zap.String("namespace", namespace))
			return 0, nil
		}
		return 0, fmt.Errorf("create domain schema %s: %w", namespace, err)
	}
	return schema.ID, nil
}

// resolveDomainSchema looks up or creates namespace, repeating the lookup
// once after a lost creation race.
func (s *Store) resolveDomainSchema(ctx context.Context, namespace string) (int64, error) {
	id, err := s.DomainSchemaID(ctx, namespace)
	if err != nil || id != 0 {
		return id, err
	}
	if id, err = s.CreateDomainSchema(ctx, namespace); err != nil || id != 0 {
		return id, err
	}
	id, err = s.DomainSchemaID(ctx, namespace)
	if err == nil && id == 0 {
		err = fmt.Errorf("domain schema %s vanished after creation", namespace)
	}
	return id, err
}

// writeDomainMetadata replaces all domain metadata of the record. Keys
// without a namespace or field are logged and dropped.
func (s *Store) writeDomainMetadata(ctx context.Context, w *childWriter, domain harvest.DomainMetadata) {
	keys := make([]string, 0, len(domain))
	for k := range domain {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var rows []models.DomainMetadata
	for _, key := range keys {
		namespace, field, ok := harvest.SplitKey(key)
		if !ok {
			w.failures++
			w.log.Warn("malformed domain metadata key", zap.String("key", key))
			continue
		}
		schemaID, err := s.resolveDomainSchema(ctx, namespace)
		if err != nil {
			w.failures++
			w.log.Warn("unable to resolve domain schema", zap.String("namespace", namespace), zap.Error(err))
			continue
		}
		for _, v := range domain[key] {
			rows = append(rows, models.DomainMetadata{
				RecordID:   w.recordID,
				SchemaID:   schemaID,
				FieldName:  field,
				FieldValue: v,
			})
		}
	}
	replaceRows(ctx, w, "domain_metadata", unscoped, rows)
}
