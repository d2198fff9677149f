// handlers/gamification_routes.go
package handlers

import (
	"log"
	"strconv"
	"time"

	"nexus-progression-engine/middleware"
	"nexus-progression-engine/models"
	"nexus-progression-engine/services"
	"nexus-progression-engine/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// svcError maps a service error onto the right status: conflict-style
// errors mean "already done" (409), precondition failures are the user's
// problem (400), unknown-entity errors are 404, everything else is a 500.
func svcError(c *fiber.Ctx, err error, what string) error {
	switch {
	case services.IsConflict(err):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case services.IsPrecondition(err):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case services.IsUnknown(err):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": what,
			"cause": err.Error(),
		})
	}
}

func SetupGamificationRoutes(app *fiber.App, engine *services.Engine) {
	// 🔐 Secured routes — require user context (userID, roles) from gateway.
	// The gateway forwards paths like /api/v1/progression/s/user/dashboard -> /s/user/dashboard
	secured := app.Group("/s", middleware.UserContextMiddleware())

	// --- Event ingestion (collaborating services) ---

	secured.Post("/events", func(c *fiber.Ctx) error {
		var body struct {
			AccountID string `json:"account_id"`
			Counter   string `json:"counter"`
			Amount    int64  `json:"amount"`
			EventID   string `json:"event_id"`
			Async     bool   `json:"async"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if body.AccountID == "" {
			body.AccountID = c.Locals("user_id").(string)
		}
		if body.Counter == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "counter is required"})
		}

		if body.Async {
			if err := engine.Enqueue(body.AccountID, body.Counter, body.Amount, body.EventID); err != nil {
				return svcError(c, err, "failed to enqueue event")
			}
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": true})
		}

		grant, err := engine.ReportEvent(body.AccountID, body.Counter, body.Amount, body.EventID)
		if err != nil {
			return svcError(c, err, "failed to process event")
		}
		resp := fiber.Map{"applied": grant.Applied}
		if grant.Applied {
			resp["xp_earned"] = grant.Entry.DeltaXP
			resp["leveled_up"] = grant.LeveledUp()
			resp["level"] = grant.NewLevel
		}
		return c.JSON(resp)
	})

	// --- User surface ---

	secured.Get("/user/dashboard", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		dash, err := engine.BuildDashboard(userID)
		if err != nil {
			return svcError(c, err, "failed to build dashboard")
		}
		return c.JSON(dash)
	})

	secured.Get("/user/xp/history", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit, _ := strconv.Atoi(c.Query("limit", "20"))
		entries, err := engine.Ledger.History(userID, limit)
		if err != nil {
			return svcError(c, err, "failed to fetch XP history")
		}
		return c.JSON(fiber.Map{"entries": entries})
	})

	secured.Get("/user/badges", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		awards, err := engine.Badges.Awards(userID)
		if err != nil {
			return svcError(c, err, "failed to fetch badges")
		}
		showcase, err := engine.Badges.Showcase(userID)
		if err != nil {
			return svcError(c, err, "failed to fetch showcase")
		}
		return c.JSON(fiber.Map{"badges": awards, "showcase": showcase})
	})

	secured.Get("/user/badges/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		progress, err := engine.Badges.Progress(userID)
		if err != nil {
			return svcError(c, err, "failed to compute badge progress")
		}
		return c.JSON(fiber.Map{"progress": progress})
	})

	secured.Get("/badges/:key/rarity", func(c *fiber.Ctx) error {
		pct, err := engine.Badges.Rarity(c.Params("key"))
		if err != nil {
			return svcError(c, err, "failed to compute rarity")
		}
		return c.JSON(fiber.Map{"badge_key": c.Params("key"), "held_by_percent": pct})
	})

	secured.Put("/user/showcase", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var body struct {
			BadgeKeys []string `json:"badge_keys"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := engine.Badges.SetShowcase(userID, body.BadgeKeys); err != nil {
			return svcError(c, err, "failed to update showcase")
		}
		return c.JSON(fiber.Map{"showcase": body.BadgeKeys})
	})

	secured.Get("/user/daily-reward", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		status, err := engine.Streaks.DailyStatus(userID)
		if err != nil {
			return svcError(c, err, "failed to fetch daily reward status")
		}
		return c.JSON(status)
	})

	secured.Post("/user/daily-reward/claim", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		if _, err := engine.Ledger.EnsureAccount(userID); err != nil {
			return svcError(c, err, "failed to ensure account")
		}
		reward, err := engine.Streaks.ClaimDaily(userID)
		if err != nil {
			return svcError(c, err, "failed to claim daily reward")
		}
		return c.JSON(fiber.Map{"xp_earned": reward.XP, "streak_day": reward.StreakDay})
	})

	// --- Shop ---

	secured.Get("/shop", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		catalog, err := engine.Shop.Catalog(userID)
		if err != nil {
			return svcError(c, err, "failed to fetch shop catalog")
		}
		return c.JSON(fiber.Map{"items": catalog})
	})

	secured.Post("/shop/purchase", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var body struct {
			ItemID    string `json:"item_id"`
			AttemptID string `json:"attempt_id"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if body.ItemID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "item_id is required"})
		}
		if body.AttemptID == "" {
			body.AttemptID = uuid.NewString()
		}
		purchase, err := engine.Shop.Purchase(userID, body.ItemID, body.AttemptID)
		if err != nil {
			return svcError(c, err, "purchase failed")
		}
		return c.JSON(purchase)
	})

	secured.Get("/shop/purchases", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		purchases, err := engine.Shop.Purchases(userID)
		if err != nil {
			return svcError(c, err, "failed to fetch purchases")
		}
		return c.JSON(fiber.Map{"purchases": purchases})
	})

	// --- Challenges & collections ---

	secured.Get("/challenges", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		challenges, err := engine.Challenges.WithProgress(userID, engine.Clock.Now())
		if err != nil {
			return svcError(c, err, "failed to fetch challenges")
		}
		return c.JSON(fiber.Map{"challenges": challenges})
	})

	secured.Post("/challenges/:id/claim", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		reward, err := engine.Challenges.Claim(userID, c.Params("id"))
		if err != nil {
			return svcError(c, err, "failed to claim challenge")
		}
		return c.JSON(fiber.Map{"xp_earned": reward.XP})
	})

	secured.Get("/collections", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		progress, err := engine.Collections.Progress(userID)
		if err != nil {
			return svcError(c, err, "failed to fetch collections")
		}
		return c.JSON(fiber.Map{"collections": progress})
	})

	// --- Seasons ---

	secured.Get("/seasons/current", func(c *fiber.Ctx) error {
		season, err := engine.Seasons.Current(engine.Clock.Now())
		if err != nil {
			return svcError(c, err, "failed to fetch current season")
		}
		if season == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no active season"})
		}
		rank, err := engine.Seasons.Rank(c.Locals("user_id").(string), season.ID)
		if err != nil {
			return svcError(c, err, "failed to compute rank")
		}
		return c.JSON(fiber.Map{"season": season, "my_rank": rank})
	})

	secured.Get("/seasons/:id/leaderboard", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		board, err := engine.Seasons.Leaderboard(c.Params("id"), limit)
		if err != nil {
			return svcError(c, err, "failed to fetch leaderboard")
		}
		return c.JSON(fiber.Map{"leaderboard": board})
	})

	secured.Get("/seasons/:id/history", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		snaps, err := engine.Seasons.RankHistory(userID, c.Params("id"))
		if err != nil {
			return svcError(c, err, "failed to fetch rank history")
		}
		return c.JSON(fiber.Map{"history": snaps})
	})

	setupAdminRoutes(secured, engine)
}

func setupAdminRoutes(secured fiber.Router, engine *services.Engine) {
	admin := secured.Group("/admin", middleware.RequireAdmin())

	admin.Post("/xp/grant", func(c *fiber.Ctx) error {
		var body struct {
			AccountID      string `json:"account_id"`
			DeltaXP        int64  `json:"delta_xp"`
			Reason         string `json:"reason"`
			IdempotencyKey string `json:"idempotency_key"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if body.AccountID == "" || body.DeltaXP == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "account_id and delta_xp are required"})
		}
		if body.IdempotencyKey == "" {
			body.IdempotencyKey = "admin:" + uuid.NewString()
		}
		if _, err := engine.Ledger.EnsureAccount(body.AccountID); err != nil {
			return svcError(c, err, "failed to ensure account")
		}
		grant, err := engine.Ledger.Grant(body.AccountID, body.DeltaXP, "admin_adjustment",
			body.Reason, body.IdempotencyKey)
		if err != nil {
			return svcError(c, err, "grant failed")
		}
		return c.JSON(fiber.Map{"applied": grant.Applied, "level": grant.NewLevel})
	})

	// Badge definition create, with optional icon upload (multipart form).
	// Icons go to R2 when configured, local disk otherwise.
	admin.Post("/badges", func(c *fiber.Ctx) error {
		def := models.BadgeDefinition{
			ID:             uuid.NewString(),
			Name:           c.FormValue("name"),
			Icon:           c.FormValue("icon"),
			Category:       c.FormValue("category"),
			Counter:        c.FormValue("counter"),
			ManualOnly:     c.FormValue("manual_only") == "true",
			RarityEligible: c.FormValue("rarity_eligible") != "false",
			IsActive:       true,
		}
		if def.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
		}
		def.Key = c.FormValue("key")
		if def.Key == "" {
			def.Key = slug.Make(def.Name)
		}
		if v := c.FormValue("threshold"); v != "" {
			threshold, err := strconv.ParseInt(v, 10, 64)
			if err != nil || threshold < 1 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid threshold"})
			}
			def.Threshold = threshold
		}
		if !def.ManualOnly && (def.Counter == "" || def.Threshold < 1) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "counter and threshold are required unless manual_only",
			})
		}

		if file, err := c.FormFile("icon_file"); err == nil {
			iconKey := "badges/" + def.Key + "-" + uuid.NewString()[:8]
			if utils.R2Enabled() {
				url, err := utils.UploadBadgeIcon(file, iconKey)
				if err != nil {
					return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
						"error": "icon upload failed", "cause": err.Error(),
					})
				}
				def.IconURL = url
			} else {
				path, err := utils.SaveIconLocally(file, iconKey)
				if err != nil {
					return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
						"error": "icon save failed", "cause": err.Error(),
					})
				}
				def.IconURL = path
			}
		}

		if err := engine.DB.Create(&def).Error; err != nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "badge key already exists", "cause": err.Error(),
			})
		}
		log.Printf("✅ Badge definition created: %s", def.Key)
		return c.Status(fiber.StatusCreated).JSON(def)
	})

	admin.Post("/badges/:key/award", func(c *fiber.Ctx) error {
		var body struct {
			AccountID string `json:"account_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.AccountID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "account_id is required"})
		}
		if _, err := engine.Ledger.EnsureAccount(body.AccountID); err != nil {
			return svcError(c, err, "failed to ensure account")
		}
		awarded, err := engine.Badges.Award(body.AccountID, c.Params("key"))
		if err != nil {
			return svcError(c, err, "failed to award badge")
		}
		return c.JSON(fiber.Map{"awarded": awarded})
	})

	admin.Post("/badges/recheck", func(c *fiber.Ctx) error {
		outcomes, err := engine.Badges.RecheckAll()
		if err != nil {
			return svcError(c, err, "recheck failed")
		}
		return c.JSON(fiber.Map{"accounts": len(outcomes), "outcomes": outcomes})
	})

	admin.Post("/challenges", func(c *fiber.Ctx) error {
		var ch models.Challenge
		if err := c.BodyParser(&ch); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if ch.Title == "" || ch.Counter == "" || ch.Target < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "title, counter and a positive target are required",
			})
		}
		if !ch.EndsAt.After(ch.StartsAt) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ends_at must be after starts_at"})
		}
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		ch.IsActive = true
		if err := engine.DB.Create(&ch).Error; err != nil {
			return svcError(c, err, "failed to create challenge")
		}
		return c.Status(fiber.StatusCreated).JSON(ch)
	})

	admin.Post("/collections", func(c *fiber.Ctx) error {
		var body struct {
			Name      string   `json:"name"`
			BonusXP   int64    `json:"bonus_xp"`
			BadgeKeys []string `json:"badge_keys"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if body.Name == "" || len(body.BadgeKeys) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name and badge_keys are required"})
		}
		col := models.Collection{
			ID:       uuid.NewString(),
			Name:     body.Name,
			BonusXP:  body.BonusXP,
			IsActive: true,
		}
		err := engine.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&col).Error; err != nil {
				return err
			}
			for _, key := range body.BadgeKeys {
				member := models.CollectionBadge{CollectionID: col.ID, BadgeKey: key}
				if err := tx.Create(&member).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return svcError(c, err, "failed to create collection")
		}
		return c.Status(fiber.StatusCreated).JSON(col)
	})

	admin.Post("/shop/items", func(c *fiber.Ctx) error {
		var item models.ShopItem
		if err := c.BodyParser(&item); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if item.Name == "" || item.CostXP < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name and a positive cost_xp are required"})
		}
		item.Available = true
		if err := engine.Shop.CreateItem(&item); err != nil {
			return svcError(c, err, "failed to create shop item")
		}
		return c.Status(fiber.StatusCreated).JSON(item)
	})

	admin.Patch("/shop/items/:id", func(c *fiber.Ctx) error {
		var body map[string]interface{}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		allowed := map[string]bool{"name": true, "icon": true, "cost_xp": true, "stock": true, "repeatable": true, "available": true}
		updates := map[string]interface{}{}
		for k, v := range body {
			if allowed[k] {
				updates[k] = v
			}
		}
		if len(updates) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no updatable fields given"})
		}
		if err := engine.Shop.UpdateItem(c.Params("id"), updates); err != nil {
			return svcError(c, err, "failed to update shop item")
		}
		return c.JSON(fiber.Map{"updated": true})
	})

	admin.Post("/campaigns", func(c *fiber.Ctx) error {
		var campaign models.Campaign
		if err := c.BodyParser(&campaign); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if campaign.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
		}
		campaign.IsActive = true
		if err := engine.Campaigns.Create(&campaign); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "failed to create campaign", "cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(campaign)
	})

	admin.Get("/campaigns", func(c *fiber.Ctx) error {
		campaigns, err := engine.Campaigns.List()
		if err != nil {
			return svcError(c, err, "failed to list campaigns")
		}
		return c.JSON(fiber.Map{"campaigns": campaigns})
	})

	admin.Post("/campaigns/:id/run", func(c *fiber.Ctx) error {
		tick := c.Query("tick")
		if tick == "" {
			tick = "manual-" + time.Now().UTC().Format("2006-01-02T15:04:05")
		}
		outcomes, err := engine.Campaigns.Run(c.Params("id"), tick)
		if err != nil {
			return svcError(c, err, "campaign run failed")
		}
		return c.JSON(fiber.Map{"tick": tick, "outcomes": outcomes})
	})

	admin.Post("/seasons", func(c *fiber.Ctx) error {
		var body struct {
			Name     string    `json:"name"`
			StartsAt time.Time `json:"starts_at"`
			EndsAt   time.Time `json:"ends_at"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if body.Name == "" || !body.EndsAt.After(body.StartsAt) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "name and a valid starts_at/ends_at window are required",
			})
		}
		season, err := engine.Seasons.Open(body.Name, body.StartsAt, body.EndsAt)
		if err != nil {
			return svcError(c, err, "failed to open season")
		}
		return c.Status(fiber.StatusCreated).JSON(season)
	})

	admin.Post("/seasons/:id/close", func(c *fiber.Ctx) error {
		if err := engine.Seasons.Close(c.Params("id")); err != nil {
			return svcError(c, err, "failed to close season")
		}
		return c.JSON(fiber.Map{"closed": true})
	})
}
