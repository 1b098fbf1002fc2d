package reportsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/okozyrev/extraction-review/internal/domain"
	"github.com/okozyrev/extraction-review/internal/engine"
	"github.com/okozyrev/extraction-review/internal/logger"
)

// SyncReport publishes a comparison result to a Notion database, one page
// per compared email. Pages are keyed by the Email ID title: existing pages
// are updated in place, pages for emails no longer in the comparison are
// archived, so re-running the sync is idempotent.
func SyncReport(ctx context.Context, notionClient NotionService, notionDBID string, result *engine.ComparisonResult, dryRun bool) error {
	log := logger.FromContext(ctx)

	log.Info().
		Str("run_a", result.RunA.ID).
		Str("run_b", result.RunB.ID).
		Int("comparisons", len(result.Comparisons)).
		Bool("dry_run", dryRun).
		Msg("Starting review report sync to Notion")

	byEmail := make(map[string]*domain.Comparison, len(result.Comparisons))
	for _, c := range result.Comparisons {
		byEmail[c.EmailID] = c
	}

	pages, err := queryAllPages(ctx, notionClient, notionDBID)
	if err != nil {
		return fmt.Errorf("SyncReport: query Notion pages: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	existing := make(map[string]string) // email id -> page id
	var archived int
	for _, page := range pages {
		emailID := extractEmailID(page)
		if emailID != "" {
			if _, ok := byEmail[emailID]; ok {
				existing[emailID] = string(page.ID)
				continue
			}
		}

		// Page has no usable title or its email left the comparison.
		if dryRun {
			log.Info().
				Str("email_id", emailID).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would archive stale report page")
			archived++
			continue
		}
		if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("email_id", emailID).
				Str("page_id", string(page.ID)).
				Msg("Failed to archive stale report page")
			continue
		}
		archived++
	}
	if archived > 0 {
		log.Info().Int("archived", archived).Msg("Archived stale report pages")
	}

	var created, updated int
	for _, c := range result.Comparisons {
		props := ComparisonToNotionProperties(c)
		pageID, exists := existing[c.EmailID]

		if dryRun {
			if exists {
				updated++
			} else {
				created++
			}
			continue
		}

		if exists {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().
					Err(err).
					Str("email_id", c.EmailID).
					Str("page_id", pageID).
					Msg("Failed to update report page")
				continue
			}
			updated++
			continue
		}

		if _, err := notionClient.CreatePage(ctx, notionDBID, props); err != nil {
			log.Warn().
				Err(err).
				Str("email_id", c.EmailID).
				Msg("Failed to create report page")
			continue
		}
		created++
	}

	log.Info().
		Int("created", created).
		Int("updated", updated).
		Int("archived", archived).
		Msg("Review report sync completed")
	return nil
}

// queryAllPages pages through the whole database.
func queryAllPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			StartCursor: cursor,
			PageSize:    100,
		}
		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, err
		}
		pages = append(pages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}
	return pages, nil
}
