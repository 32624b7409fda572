package reconcile

import (
	"context"
	"log/slog"

	"github.com/Uzaifm127/linkrem/pkg/linkrem/metrics"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/models"
	"gorm.io/gorm"
)

// DeleteTag detaches a tag from every link of the owner and deletes it.
// Locked tags are refused with ErrLocked.
func (e *Engine) DeleteTag(ctx context.Context, ownerID uint, tagName string) error {
	ctx, span := e.start(ctx, "delete_tag")
	defer span.End()

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag models.Tag
		if err := tx.Where("owner_id = ? AND tag_name = ?", ownerID, tagName).First(&tag).Error; err != nil {
			return err
		}
		if tag.Locked {
			return ErrLocked
		}
		if err := tx.Model(&tag).Association("Links").Clear(); err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
	if err = e.finish(span, "delete_tag", err == nil, err); err != nil {
		return err
	}

	e.invalidate(ctx, ownerID)
	return nil
}

// SweepOrphans deletes the owner's unlocked tags that no link references
func (e *Engine) SweepOrphans(ctx context.Context, ownerID uint) (int64, error) {
	db := e.db.WithContext(ctx)
	return e.sweep(db.Where("owner_id = ?", ownerID))
}

// SweepAll deletes unlocked tags that no link references, for every owner
func (e *Engine) SweepAll(ctx context.Context) (int64, error) {
	return e.sweep(e.db.WithContext(ctx))
}

func (e *Engine) sweep(scope *gorm.DB) (int64, error) {
	orphaned := scope.Session(&gorm.Session{NewDB: true}).Table("link_tags").Select("tag_id")
	res := scope.
		Where("locked = ?", false).
		Where("id NOT IN (?)", orphaned).
		Delete(&models.Tag{})
	if res.Error != nil {
		return 0, res.Error
	}
	metrics.TagsSwept.Add(float64(res.RowsAffected))
	return res.RowsAffected, nil
}

// sweepAfter runs the post-commit sweep. Failures are logged, never returned:
// the mutation that preceded it has already been committed.
func (e *Engine) sweepAfter(ctx context.Context, ownerID uint) int64 {
	n, err := e.SweepOrphans(ctx, ownerID)
	if err != nil {
		metrics.SweepFailures.Inc()
		e.logger.WarnContext(ctx, "orphan tag sweep failed",
			slog.Uint64("owner_id", uint64(ownerID)),
			slog.Any("error", err))
		return 0
	}
	if n > 0 {
		e.logger.DebugContext(ctx, "swept orphaned tags",
			slog.Uint64("owner_id", uint64(ownerID)),
			slog.Int64("count", n))
	}
	return n
}
