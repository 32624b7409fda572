package reconcile

import (
	"context"

	"github.com/Uzaifm127/linkrem/pkg/linkrem/models"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/tagdiff"
	"gorm.io/gorm"
)

// CreateInput describes a new link
type CreateInput struct {
	Name     string
	URL      string
	Tags     []string
	Shortcut string
}

// UpdateInput describes an edit of the link currently named CurrentName.
//
// The change flags mirror the edit form: nil means "compare with the stored
// value", false leaves the field untouched, true applies it. A nil Tags leaves
// the tag set alone unless TagChange is true; an empty list clears it.
type UpdateInput struct {
	CurrentName string
	Name        string
	URL         string
	Tags        *[]string
	NameChange  *bool
	URLChange   *bool
	TagChange   *bool
}

// Result reports what a mutation did
type Result struct {
	Changed  bool
	Attached []string
	Detached []string
	Swept    int64
	Link     models.Link
}

// edit is the normalised form of a link mutation. Nil fields are untouched.
type edit struct {
	name *string
	url  *string
	tags func(current []string) []string
}

// CreateLink stores a new link with its tags and optional shortcut.
// Existing tags of the owner are connected, missing ones are created.
func (e *Engine) CreateLink(ctx context.Context, ownerID uint, in CreateInput) (*models.Link, error) {
	ctx, span := e.start(ctx, "create")
	defer span.End()

	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, e.finish(span, "create", false, err)
	}
	u, err := normalizeURL(in.URL)
	if err != nil {
		return nil, e.finish(span, "create", false, err)
	}
	if in.Shortcut != "" && !ShortcutKeyPattern.MatchString(in.Shortcut) {
		return nil, e.finish(span, "create", false, &ValidationError{"Shortcut must contain only letters, numbers, hyphens, and underscores"})
	}

	link := models.Link{OwnerID: ownerID, Name: name, URL: u}
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkNameFree(tx, ownerID, name, 0); err != nil {
			return err
		}
		if err := tx.Create(&link).Error; err != nil {
			return err
		}
		if err := attachTags(tx, &link, tagdiff.Normalize(in.Tags), false); err != nil {
			return err
		}
		if in.Shortcut != "" {
			sc := models.Shortcut{OwnerID: ownerID, LinkID: link.ID, Key: in.Shortcut}
			if err := tx.Create(&sc).Error; err != nil {
				return err
			}
			link.Shortcut = &sc
		}
		return tx.Preload("Tags").Preload("Shortcut").First(&link, link.ID).Error
	})
	if err = e.finish(span, "create", err == nil, err); err != nil {
		return nil, err
	}

	e.invalidate(ctx, ownerID)
	return &link, nil
}

// UpdateLink edits a link's name, URL and tag set in one transaction.
// When nothing differs from the stored state no write is issued and the
// result reports Changed == false.
func (e *Engine) UpdateLink(ctx context.Context, ownerID uint, in UpdateInput) (*Result, error) {
	ctx, span := e.start(ctx, "update")
	defer span.End()

	var ed edit
	if in.NameChange == nil || *in.NameChange {
		name, err := normalizeName(in.Name)
		if err != nil {
			return nil, e.finish(span, "update", false, err)
		}
		ed.name = &name
	}
	if in.URLChange == nil || *in.URLChange {
		u, err := normalizeURL(in.URL)
		if err != nil {
			return nil, e.finish(span, "update", false, err)
		}
		ed.url = &u
	}
	if (in.TagChange == nil && in.Tags != nil) || (in.TagChange != nil && *in.TagChange) {
		var submitted []string
		if in.Tags != nil {
			submitted = *in.Tags
		}
		desired := tagdiff.Normalize(submitted)
		ed.tags = func([]string) []string { return desired }
	}

	locate := func(tx *gorm.DB) *gorm.DB {
		return tx.Where("owner_id = ? AND name = ?", ownerID, in.CurrentName)
	}
	res, err := e.apply(ctx, ownerID, locate, ed)
	return res, e.finish(span, "update", res != nil && res.Changed, err)
}

// SetTags replaces the tag set of a link
func (e *Engine) SetTags(ctx context.Context, ownerID, linkID uint, tags []string) (*Result, error) {
	ctx, span := e.start(ctx, "set_tags")
	defer span.End()

	desired := tagdiff.Normalize(tags)
	res, err := e.apply(ctx, ownerID, byID(ownerID, linkID), edit{
		tags: func([]string) []string { return desired },
	})
	return res, e.finish(span, "set_tags", res != nil && res.Changed, err)
}

// AttachTag adds a single tag to a link
func (e *Engine) AttachTag(ctx context.Context, ownerID, linkID uint, tagName string) (*Result, error) {
	ctx, span := e.start(ctx, "attach")
	defer span.End()

	res, err := e.apply(ctx, ownerID, byID(ownerID, linkID), edit{
		tags: func(current []string) []string { return append(current, tagName) },
	})
	return res, e.finish(span, "attach", res != nil && res.Changed, err)
}

// DetachTag removes a single tag from a link. Detaching a tag the link does
// not carry is a no-op.
func (e *Engine) DetachTag(ctx context.Context, ownerID, linkID uint, tagName string) (*Result, error) {
	ctx, span := e.start(ctx, "detach")
	defer span.End()

	res, err := e.apply(ctx, ownerID, byID(ownerID, linkID), edit{
		tags: func(current []string) []string {
			out := current[:0:0]
			for _, n := range current {
				if n != tagName {
					out = append(out, n)
				}
			}
			return out
		},
	})
	return res, e.finish(span, "detach", res != nil && res.Changed, err)
}

// DeleteLink removes a link together with its tag, session and shortcut
// references, then sweeps the owner's orphaned tags.
func (e *Engine) DeleteLink(ctx context.Context, ownerID uint, name string) error {
	ctx, span := e.start(ctx, "delete")
	defer span.End()

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link models.Link
		if err := tx.Where("owner_id = ? AND name = ?", ownerID, name).First(&link).Error; err != nil {
			return err
		}
		return deleteLink(tx, &link)
	})
	if err = e.finish(span, "delete", err == nil, err); err != nil {
		return err
	}

	e.sweepAfter(ctx, ownerID)
	e.invalidate(ctx, ownerID)
	return nil
}

func deleteLink(tx *gorm.DB, link *models.Link) error {
	if err := tx.Model(link).Association("Tags").Clear(); err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM session_links WHERE link_id = ?", link.ID).Error; err != nil {
		return err
	}
	if err := tx.Where("link_id = ?", link.ID).Delete(&models.Shortcut{}).Error; err != nil {
		return err
	}
	return tx.Delete(link).Error
}

func byID(ownerID, linkID uint) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("owner_id = ? AND id = ?", ownerID, linkID)
	}
}

// apply loads the link selected by locate and applies ed to it. Scalar
// fields are written before the tag diff, inside the same transaction.
func (e *Engine) apply(ctx context.Context, ownerID uint, locate func(*gorm.DB) *gorm.DB, ed edit) (*Result, error) {
	res := &Result{}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link models.Link
		if err := locate(tx).Preload("Tags").First(&link).Error; err != nil {
			return err
		}
		current := link.Tags

		updates := map[string]interface{}{}
		if ed.name != nil && *ed.name != link.Name {
			if err := checkNameFree(tx, ownerID, *ed.name, link.ID); err != nil {
				return err
			}
			updates["name"] = *ed.name
		}
		if ed.url != nil && *ed.url != link.URL {
			updates["url"] = *ed.url
		}

		var plan tagdiff.Plan
		if ed.tags != nil {
			names := link.TagNames()
			plan = tagdiff.Diff(names, ed.tags(names))
		}

		if len(updates) == 0 && plan.Empty() {
			res.Link = link
			return nil
		}

		if len(updates) > 0 {
			if err := tx.Model(&link).Updates(updates).Error; err != nil {
				return err
			}
		}
		if err := detachTags(tx, &link, current, plan.Detach); err != nil {
			return err
		}
		if err := attachTags(tx, &link, plan.Attach, false); err != nil {
			return err
		}

		res.Changed = true
		res.Attached = plan.Attach
		res.Detached = plan.Detach
		return tx.Preload("Tags").Preload("Shortcut").First(&res.Link, link.ID).Error
	})
	if err != nil {
		return nil, translate(err)
	}

	if res.Changed {
		if len(res.Detached) > 0 {
			res.Swept = e.sweepAfter(ctx, ownerID)
		}
		e.invalidate(ctx, ownerID)
	}
	return res, nil
}

func checkNameFree(tx *gorm.DB, ownerID uint, name string, excludeID uint) error {
	var count int64
	query := tx.Model(&models.Link{}).Where("owner_id = ? AND name = ?", ownerID, name)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrConflict
	}
	return nil
}

// attachTags connects names to link, creating the owner's missing tags.
// With locked set, existing unlocked tags are locked as well; otherwise
// existing tags keep their flag.
func attachTags(tx *gorm.DB, link *models.Link, names []string, locked bool) error {
	if len(names) == 0 {
		return nil
	}

	tags := make([]models.Tag, 0, len(names))
	for _, n := range names {
		if len(n) > 191 {
			return &ValidationError{"Tag name is too long"}
		}
		var tag models.Tag
		err := tx.Where(models.Tag{OwnerID: link.OwnerID, TagName: n}).
			Attrs(models.Tag{Locked: locked}).
			FirstOrCreate(&tag).Error
		if err != nil {
			return err
		}
		if locked && !tag.Locked {
			if err := tx.Model(&tag).Update("locked", true).Error; err != nil {
				return err
			}
			tag.Locked = true
		}
		tags = append(tags, tag)
	}
	return tx.Model(link).Association("Tags").Append(tags)
}

func detachTags(tx *gorm.DB, link *models.Link, current []models.Tag, names []string) error {
	if len(names) == 0 {
		return nil
	}

	drop := tagdiff.NewSet(names)
	tags := make([]models.Tag, 0, len(names))
	for _, t := range current {
		if drop.Has(t.TagName) {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tx.Model(link).Association("Tags").Delete(tags)
}
