package analytics

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/iliyamo/balance-dashboard/internal/dates"
	"github.com/iliyamo/balance-dashboard/internal/model"
	"github.com/iliyamo/balance-dashboard/internal/repository"
)

// LengthCount is one content length bucket.
type LengthCount struct {
	Length string `json:"length"`
	Count  int    `json:"count"`
}

// TextAnalysis describes the text of all published notes.
type TextAnalysis struct {
	WordFrequency []WordCount   `json:"word_frequency"`
	Lengths       []LengthCount `json:"content_length_distribution"`
	Dates         []CountPoint  `json:"date_distribution"`
}

var lengthBuckets = []struct {
	max   int
	label string
}{
	{5, "0-5"},
	{10, "6-10"},
	{20, "11-20"},
	{50, "21-50"},
	{100, "51-100"},
}

func lengthBucket(n int) string {
	for _, b := range lengthBuckets {
		if n <= b.max {
			return b.label
		}
	}
	return "100+"
}

// NoteTextAnalysis computes the top words, the content length histogram
// and the per-day publication counts of published notes.
func (s *Service) NoteTextAnalysis(ctx context.Context) (TextAnalysis, error) {
	notes, err := s.WP.PublishedPosts(ctx, repository.PostFilter{Type: model.PostTypeNote})
	if err != nil {
		return TextAnalysis{}, errors.Wrap(err, "load notes")
	}
	words, lengths := newTally(), newTally()
	days := map[string]int{}
	for _, n := range notes {
		content := strings.ToLower(n.Content)
		for _, w := range strings.Fields(content) {
			if utf8.RuneCountInString(w) > 3 {
				words.add(w, 1)
			}
		}
		lengths.add(lengthBucket(utf8.RuneCountInString(content)), 1)
		days[dates.Format(s.wall(n.Date))]++
	}

	out := TextAnalysis{
		WordFrequency: words.top(50),
		Lengths:       make([]LengthCount, 0, len(lengths.order)),
		Dates:         SortedSeries(days),
	}
	for _, k := range lengths.order {
		out.Lengths = append(out.Lengths, LengthCount{Length: k, Count: lengths.counts[k]})
	}
	return out, nil
}

// ModuleRelationship lists module tags with their note counts.
type ModuleRelationship struct {
	Modules      []string            `json:"modules"`
	ModuleCounts []model.ModuleCount `json:"module_counts"`
}

func (s *Service) ModelNoteRelationship(ctx context.Context) (ModuleRelationship, error) {
	mods, err := s.Modules(ctx)
	if err != nil {
		return ModuleRelationship{}, err
	}
	counts, err := s.WP.ModuleCounts(ctx)
	if err != nil {
		return ModuleRelationship{}, errors.Wrap(err, "count module notes")
	}
	if counts == nil {
		counts = []model.ModuleCount{}
	}
	return ModuleRelationship{Modules: mods, ModuleCounts: counts}, nil
}

// Modules lists the distinct module tags.
func (s *Service) Modules(ctx context.Context) ([]string, error) {
	mods, err := s.WP.ModuleTags(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load module tags")
	}
	if mods == nil {
		mods = []string{}
	}
	return mods, nil
}

// ModuleTrend is the upload series of one module.
type ModuleTrend struct {
	Module string       `json:"module"`
	Data   []CountPoint `json:"data"`
}

// UploadTrends is the note upload report.
type UploadTrends struct {
	Overall   []CountPoint  `json:"overall_trend"`
	Modules   []ModuleTrend `json:"module_trends"`
	Interval  string        `json:"interval"`
	StartDate string        `json:"start_date"`
	EndDate   string        `json:"end_date"`
}

// NoteUploadTrends buckets note publications over r, overall and per module.
func (s *Service) NoteUploadTrends(ctx context.Context, r dates.Range, iv dates.Interval) (UploadTrends, error) {
	from, to := r.Bounds(s.Loc)
	notes, err := s.WP.PublishedPosts(ctx, noteFilter(s.stored(from), s.stored(to)))
	if err != nil {
		return UploadTrends{}, errors.Wrap(err, "load notes")
	}
	mods, err := s.Modules(ctx)
	if err != nil {
		return UploadTrends{}, err
	}
	tags, err := s.WP.NoteModules(ctx)
	if err != nil {
		return UploadTrends{}, errors.Wrap(err, "load note modules")
	}
	tagged := make(map[uint64][]string, len(tags))
	for _, t := range tags {
		tagged[t.PostID] = append(tagged[t.PostID], t.Module)
	}

	overall := map[string]int{}
	perModule := make(map[string]map[string]int, len(mods))
	for _, m := range mods {
		perModule[m] = map[string]int{}
	}
	for _, n := range notes {
		k := iv.Key(s.wall(n.Date))
		overall[k]++
		for _, m := range tagged[n.ID] {
			if c, ok := perModule[m]; ok {
				c[k]++
			}
		}
	}

	keys := dates.Buckets(r.Start.In(s.Loc), r.End.In(s.Loc), iv)
	out := UploadTrends{
		Overall:   FillSeries(keys, overall),
		Modules:   make([]ModuleTrend, len(mods)),
		Interval:  string(iv),
		StartDate: dates.Format(r.Start.In(s.Loc)),
		EndDate:   dates.Format(r.End.In(s.Loc)),
	}
	for i, m := range mods {
		out.Modules[i] = ModuleTrend{Module: m, Data: FillSeries(keys, perModule[m])}
	}
	return out, nil
}

// NoteImage is an image attached to a note through notes_img_N.
type NoteImage struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	FilePath string `json:"file_path,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Note is a published note with its images.
type Note struct {
	ID      uint64      `json:"id"`
	Title   string      `json:"title"`
	Content string      `json:"content"`
	Date    string      `json:"date"`
	Author  uint64      `json:"author"`
	Images  []NoteImage `json:"images"`
}

// ModuleNotes is the content of one module.
type ModuleNotes struct {
	Module     string `json:"module"`
	NotesCount int    `json:"notes_count"`
	Notes      []Note `json:"notes"`
}

const (
	imageSlots  = 5
	uploadsPath = "/wp-content/uploads/"
	isoLayout   = "2006-01-02T15:04:05"
)

// ModuleNotesContent loads every published note tagged module together
// with its images. Posts, image metadata, attachments and attachment files
// are each fetched with one query.
func (s *Service) ModuleNotesContent(ctx context.Context, module string) (ModuleNotes, error) {
	out := ModuleNotes{Module: module, Notes: []Note{}}
	ids, err := s.WP.PostIDsForModule(ctx, module)
	if err != nil {
		return out, errors.Wrap(err, "load module posts")
	}
	posts, err := s.WP.PostsByIDs(ctx, ids)
	if err != nil {
		return out, errors.Wrap(err, "load notes")
	}
	var noteIDs []uint64
	for _, p := range posts {
		if p.Type == model.PostTypeNote && p.Status == model.PostStatusPublish {
			noteIDs = append(noteIDs, p.ID)
		}
	}

	slotKeys := make([]string, imageSlots)
	for i := range slotKeys {
		slotKeys[i] = model.MetaNoteImage + strconv.Itoa(i+1)
	}
	slotMeta, err := s.WP.PostMetaFor(ctx, noteIDs, slotKeys)
	if err != nil {
		return out, errors.Wrap(err, "load note images")
	}
	slots := map[uint64]map[string]string{}
	var attIDs []uint64
	for _, m := range slotMeta {
		v := strings.TrimSpace(m.Value.String)
		if v == "" {
			continue
		}
		if slots[m.PostID] == nil {
			slots[m.PostID] = map[string]string{}
		}
		if _, dup := slots[m.PostID][m.Key]; dup {
			continue
		}
		slots[m.PostID][m.Key] = v
		if iv, err := model.StringMeta(v).ParseInteger(); err == nil {
			n, _ := iv.Int()
			attIDs = append(attIDs, uint64(n))
		}
	}

	atts, err := s.WP.PostsByIDs(ctx, attIDs)
	if err != nil {
		return out, errors.Wrap(err, "load attachments")
	}
	attachments := make(map[string]model.Post, len(atts))
	var realAtt []uint64
	for _, a := range atts {
		if a.Type == model.PostTypeAttachment {
			attachments[strconv.FormatUint(a.ID, 10)] = a
			realAtt = append(realAtt, a.ID)
		}
	}
	fileMeta, err := s.WP.PostMetaFor(ctx, realAtt, []string{model.MetaAttachedFile})
	if err != nil {
		return out, errors.Wrap(err, "load attachment files")
	}
	files := make(map[string]string, len(fileMeta))
	for _, m := range fileMeta {
		k := strconv.FormatUint(m.PostID, 10)
		if _, ok := files[k]; !ok && m.Value.Valid {
			files[k] = m.Value.String
		}
	}

	for _, p := range posts {
		if p.Type != model.PostTypeNote || p.Status != model.PostStatusPublish {
			continue
		}
		note := Note{
			ID:      p.ID,
			Title:   p.Title,
			Content: p.Content,
			Date:    p.Date.Format(isoLayout),
			Author:  p.Author,
			Images:  []NoteImage{},
		}
		for i, key := range slotKeys {
			imgID, ok := slots[p.ID][key]
			if !ok {
				continue
			}
			note.Images = append(note.Images, s.resolveImage(p, i+1, imgID, attachments, files))
		}
		out.Notes = append(out.Notes, note)
	}
	out.NotesCount = len(out.Notes)
	return out, nil
}

// resolveImage prefers the attachment's _wp_attached_file, then a guid
// pointing into uploads, then the conventional output-<post>-<slot>.png path.
func (s *Service) resolveImage(note model.Post, slot int, imgID string, atts map[string]model.Post, files map[string]string) NoteImage {
	img := NoteImage{ID: imgID}
	uploaded := note.Date
	if att, ok := atts[imgID]; ok {
		if f, ok := files[imgID]; ok {
			img.URL = s.UploadsURL + uploadsPath + f
			img.FilePath = f
			return img
		}
		if i := strings.LastIndex(att.GUID, uploadsPath); i >= 0 {
			img.URL = att.GUID
			img.FilePath = att.GUID[i+len(uploadsPath):]
			return img
		}
		uploaded = att.Date
	}
	img.URL = fmt.Sprintf("%s%s%s/output-%d-%d.png", s.UploadsURL, uploadsPath, uploaded.Format("2006/01"), note.ID, slot)
	img.Fallback = true
	return img
}

// NotesStats is the notes overview card.
type NotesStats struct {
	TotalNotes      int     `json:"total_notes"`
	ModuleCount     int     `json:"module_count"`
	ActiveUsers     int     `json:"active_users"`
	AvgNotesPerUser float64 `json:"avg_notes_per_user"`
}

func (s *Service) NotesStatistics(ctx context.Context) (NotesStats, error) {
	total, err := s.WP.CountPublishedPosts(ctx, model.PostTypeNote)
	if err != nil {
		return NotesStats{}, errors.Wrap(err, "count notes")
	}
	mods, err := s.Modules(ctx)
	if err != nil {
		return NotesStats{}, err
	}
	authors, err := s.WP.CountNoteAuthors(ctx)
	if err != nil {
		return NotesStats{}, errors.Wrap(err, "count note authors")
	}
	out := NotesStats{TotalNotes: total, ModuleCount: len(mods), ActiveUsers: authors}
	if authors > 0 {
		out.AvgNotesPerUser = round(float64(total)/float64(authors), 1)
	}
	return out, nil
}

func noteFilter(from, to time.Time) repository.PostFilter {
	return repository.PostFilter{Type: model.PostTypeNote, From: from, To: to}
}
