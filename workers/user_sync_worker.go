package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"territory-challenge-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// profileFeedResponse is the top-level structure of the account service
// profile feed.
type profileFeedResponse struct {
	Profiles []models.RemoteProfile `json:"profiles"`
}

// UserSyncWorker mirrors account-service profiles into the local users
// table so the membership ledger can resolve nicknames without a network
// call per request.
type UserSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewUserSyncWorker(db *gorm.DB, accountServiceBaseURL, endpointPath, serviceToken string) *UserSyncWorker {
	return &UserSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      accountServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *UserSyncWorker) Start(ctx context.Context) {
	log.Println("Starting user sync worker (account service -> users)")
	go w.run(ctx)
}

func (w *UserSyncWorker) run(ctx context.Context) {
	// Initial sync backfills from the beginning of time.
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("[UserSync] initial sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.lastSyncTime()); err != nil {
				log.Printf("[UserSync] sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("user sync worker stopped")
			return
		}
	}
}

// lastSyncTime finds the most recent UpdatedAt in the local users table;
// incremental syncs only request profiles changed after it.
func (w *UserSyncWorker) lastSyncTime() time.Time {
	var lastTime time.Time
	w.db.Model(&models.User{}).Select("COALESCE(MAX(updated_at), '0001-01-01')").Scan(&lastTime)
	return lastTime
}

func (w *UserSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	endpoint, err := url.Parse(w.baseURL + w.endpointPath)
	if err != nil {
		return fmt.Errorf("invalid sync endpoint: %w", err)
	}
	q := endpoint.Query()
	if !since.IsZero() {
		q.Set("updated_after", since.UTC().Format(time.RFC3339))
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("profile feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("profile feed returned %d: %s", resp.StatusCode, string(body))
	}

	var feed profileFeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return fmt.Errorf("decoding profile feed: %w", err)
	}
	if len(feed.Profiles) == 0 {
		return nil
	}

	users := make([]models.User, 0, len(feed.Profiles))
	for _, p := range feed.Profiles {
		users = append(users, models.User{
			Nickname:    p.Nickname,
			Email:       p.Email,
			PicturePath: p.PicturePath,
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
		})
	}

	err = w.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "nickname"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "picture_path", "latitude", "longitude", "updated_at"}),
	}).Create(&users).Error
	if err != nil {
		return fmt.Errorf("upserting users: %w", err)
	}

	log.Printf("[UserSync] synced %d profile(s)", len(users))
	return nil
}
