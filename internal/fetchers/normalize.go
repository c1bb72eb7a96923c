package fetchers

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/anonto42/alumni-connect/backend/internal/models"
	"github.com/anonto42/alumni-connect/backend/internal/repositories"
	"github.com/mitchellh/mapstructure"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthorSource loads the people embedded as authors, posters and organizers.
type AuthorSource interface {
	GetAlumniByIDs(ctx context.Context, ids []uint) ([]models.Alumni, error)
}

// Normalizer is the only place storage rows become canonical entities. The
// fetchers use it for query results and the realtime manager for change-feed
// rows. Authors are cached because the same handful of people appear across
// every collection.
type Normalizer struct {
	authors AuthorSource

	mu    sync.RWMutex
	cache map[uint]entity.Author
}

func NewNormalizer(authors AuthorSource) *Normalizer {
	return &Normalizer{authors: authors, cache: make(map[uint]entity.Author)}
}

// Authors resolves ids with one batched lookup for the cache misses. Ids that
// cannot be resolved map to an Author carrying only the id.
func (n *Normalizer) Authors(ctx context.Context, ids []uint) (map[uint]entity.Author, error) {
	out := make(map[uint]entity.Author, len(ids))
	var missing []uint

	n.mu.RLock()
	for _, id := range ids {
		if _, seen := out[id]; seen || id == 0 {
			continue
		}
		if a, ok := n.cache[id]; ok {
			out[id] = a
			continue
		}
		out[id] = entity.Author{ID: repositories.FormatID(id)}
		missing = append(missing, id)
	}
	n.mu.RUnlock()

	if len(missing) == 0 || n.authors == nil {
		return out, nil
	}

	rows, err := n.authors.GetAlumniByIDs(ctx, missing)
	if err != nil {
		return out, err
	}
	n.mu.Lock()
	for _, row := range rows {
		a := authorFromModel(row)
		n.cache[row.ID] = a
		out[row.ID] = a
	}
	n.mu.Unlock()
	return out, nil
}

// Remember refreshes the cached author for an alumni row seen on the change feed
func (n *Normalizer) Remember(a models.Alumni) {
	n.mu.Lock()
	n.cache[a.ID] = authorFromModel(a)
	n.mu.Unlock()
}

func authorFromModel(a models.Alumni) entity.Author {
	headline := a.Position
	if a.Company != "" {
		if headline != "" {
			headline += " at " + a.Company
		} else {
			headline = a.Company
		}
	}
	return entity.Author{
		ID:        repositories.FormatID(a.ID),
		Name:      a.Name,
		AvatarURL: a.AvatarURL,
		Headline:  headline,
	}
}

func authorRef(authors map[uint]entity.Author, id uint) *entity.Author {
	if id == 0 {
		return nil
	}
	a, ok := authors[id]
	if !ok {
		a = entity.Author{ID: repositories.FormatID(id)}
	}
	return &a
}

func (n *Normalizer) Alumni(a models.Alumni) entity.Alumni {
	skills := a.Skills
	if skills == nil {
		skills = []string{}
	}
	return entity.Alumni{
		ID:             repositories.FormatID(a.ID),
		Name:           a.Name,
		Email:          a.Email,
		AvatarURL:      a.AvatarURL,
		GraduationYear: a.GraduationYear,
		Degree:         a.Degree,
		Major:          a.Major,
		Company:        a.Company,
		Position:       a.Position,
		Location:       a.Location,
		Industry:       a.Industry,
		Bio:            a.Bio,
		Skills:         append([]string(nil), skills...),
		LinkedInURL:    a.LinkedInURL,
		CreatedAt:      a.CreatedAt,
	}
}

func (n *Normalizer) Job(j models.Job, authors map[uint]entity.Author) entity.Job {
	return entity.Job{
		ID:             repositories.FormatID(j.ID),
		Title:          j.Title,
		Company:        j.Company,
		Location:       j.Location,
		Type:           j.JobType,
		Category:       j.Category,
		Description:    j.Description,
		SalaryRange:    j.SalaryRange,
		ApplicationURL: j.ApplicationURL,
		PostedBy:       authorRef(authors, j.PostedByID),
		Deadline:       j.Deadline,
		CreatedAt:      j.CreatedAt,
	}
}

func (n *Normalizer) Event(e models.Event, authors map[uint]entity.Author) entity.Event {
	return entity.Event{
		ID:             repositories.FormatID(e.ID),
		Title:          e.Title,
		Description:    e.Description,
		Category:       e.Category,
		Type:           e.EventType,
		Location:       e.Location,
		StartsAt:       e.StartsAt,
		EndsAt:         e.EndsAt,
		Capacity:       e.Capacity,
		AttendeesCount: e.AttendeesCount,
		Organizer:      authorRef(authors, e.OrganizerID),
		CreatedAt:      e.CreatedAt,
	}
}

func (n *Normalizer) Post(p models.Post, authors map[uint]entity.Author) entity.Post {
	images := p.ImageURLs
	if images == nil {
		images = []string{}
	}
	var author entity.Author
	if a := authorRef(authors, p.AuthorID); a != nil {
		author = *a
	}
	return entity.Post{
		ID:        p.ID.Hex(),
		Content:   p.Content,
		Author:    author,
		ImageURLs: append([]string(nil), images...),
		Likes:     p.LikesCount,
		Comments:  []entity.Comment{},
		CreatedAt: p.CreatedAt,
	}
}

func (n *Normalizer) Comment(c models.Comment, authors map[uint]entity.Author) entity.Comment {
	var author entity.Author
	if a := authorRef(authors, c.AuthorID); a != nil {
		author = *a
	}
	return entity.Comment{
		ID:        repositories.FormatID(c.ID),
		PostID:    c.PostID,
		Author:    author,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}

func (n *Normalizer) Notification(m models.Notification) entity.Notification {
	link := ""
	if m.TargetType != "" && m.TargetID != "" {
		link = fmt.Sprintf("/%ss/%s", m.TargetType, m.TargetID)
	}
	return entity.Notification{
		ID:          repositories.FormatID(m.ID),
		RecipientID: repositories.FormatID(m.RecipientID),
		Type:        m.Type,
		Message:     m.Message,
		Link:        link,
		Read:        m.IsRead,
		CreatedAt:   m.CreatedAt,
	}
}

// Change normalizes a raw change-feed event.
func (n *Normalizer) Change(ctx context.Context, raw entity.RawChange) (entity.Change, error) {
	if !raw.EventType.Valid() {
		return entity.Change{}, fmt.Errorf("unknown event type %q", raw.EventType)
	}
	kind, ok := entity.TypeForTable(raw.Table)
	if !ok {
		return entity.Change{}, fmt.Errorf("unknown table %q", raw.Table)
	}

	change := entity.Change{EventType: raw.EventType, EntityType: kind}
	var err error
	if raw.New != nil {
		if change.New, err = n.Row(ctx, raw.Table, raw.New); err != nil {
			return entity.Change{}, fmt.Errorf("decode new row: %w", err)
		}
	}
	if raw.Old != nil {
		if change.Old, err = n.Row(ctx, raw.Table, raw.Old); err != nil {
			return entity.Change{}, fmt.Errorf("decode old row: %w", err)
		}
	}
	if raw.EventType != entity.Delete && change.New == nil {
		return entity.Change{}, fmt.Errorf("%s on %s without new row", raw.EventType, raw.Table)
	}
	if change.ID() == "" {
		return entity.Change{}, fmt.Errorf("%s on %s without id", raw.EventType, raw.Table)
	}
	return change, nil
}

// Row decodes one change-feed row of table into its canonical entity.
func (n *Normalizer) Row(ctx context.Context, table string, row map[string]any) (entity.Entity, error) {
	switch table {
	case entity.TableUsers:
		var m models.Alumni
		if err := decodeRow(row, &m); err != nil {
			return nil, err
		}
		if m.Name != "" {
			n.Remember(m)
		}
		return n.Alumni(m), nil
	case entity.TableJobs:
		var m models.Job
		if err := decodeRow(row, &m); err != nil {
			return nil, err
		}
		authors, _ := n.Authors(ctx, []uint{m.PostedByID})
		return n.Job(m, authors), nil
	case entity.TableEvents:
		var m models.Event
		if err := decodeRow(row, &m); err != nil {
			return nil, err
		}
		authors, _ := n.Authors(ctx, []uint{m.OrganizerID})
		return n.Event(m, authors), nil
	case entity.TablePosts:
		var m models.Post
		if err := decodeDocument(row, &m); err != nil {
			return nil, err
		}
		authors, _ := n.Authors(ctx, []uint{m.AuthorID})
		return n.Post(m, authors), nil
	case entity.TableComments:
		var m models.Comment
		if err := decodeRow(row, &m); err != nil {
			return nil, err
		}
		authors, _ := n.Authors(ctx, []uint{m.AuthorID})
		return n.Comment(m, authors), nil
	case entity.TableNotifications:
		var m models.Notification
		if err := decodeRow(row, &m); err != nil {
			return nil, err
		}
		return n.Notification(m), nil
	}
	return nil, fmt.Errorf("unknown table %q", table)
}

// decodeRow maps a JSON row keyed by column names onto a gorm model
func decodeRow(row map[string]any, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			timeHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(row)
}

// timeHook accepts time.Time values that were never serialized to strings
func timeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	switch v := data.(type) {
	case time.Time:
		return v, nil
	case primitive.DateTime:
		return v.Time(), nil
	}
	return data, nil
}

// decodeDocument maps a MongoDB document onto a bson-tagged model
func decodeDocument(row map[string]any, out interface{}) error {
	raw, err := bson.Marshal(bson.M(row))
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}
