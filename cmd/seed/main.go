package main

import (
	"log"

	"sentinel-gateway/internal/config"
	"sentinel-gateway/internal/database"
	"sentinel-gateway/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Seeds a demo bot with a welcome flow so a fresh install has something to
// trigger: send "hola" to the demo bot and watch the three steps fire.
func main() {
	cfg := config.LoadConfig()

	db := database.InitGorm(cfg)

	log.Println("Seeding test data...")

	bot := models.Bot{
		Name:        "Sentinel Demo",
		Platform:    "WHATSAPP",
		Identifier:  "SENTINEL_DEMO_BOT",
		Credentials: `{"token":"demo_token"}`,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&bot).Error; err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}
	// Re-read: on conflict the hook-assigned id is not the stored one.
	if err := db.First(&bot, "identifier = ?", "SENTINEL_DEMO_BOT").Error; err != nil {
		log.Fatalf("Failed to load bot: %v", err)
	}
	log.Printf("Bot: %s (%s)", bot.Name, bot.ID)

	session := models.Session{
		BotID:      bot.ID,
		Identifier: "5215551234567",
		Name:       "Test User",
		Status:     models.SessionConnected,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&session).Error; err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	if err := db.First(&session, "bot_id = ? AND identifier = ?", bot.ID, "5215551234567").Error; err != nil {
		log.Fatalf("Failed to load session: %v", err)
	}
	log.Printf("Session: %s (%s)", session.Name, session.ID)

	err := db.Transaction(func(tx *gorm.DB) error {
		flow := models.Flow{
			BotID:       bot.ID,
			Name:        "Welcome Flow",
			Description: "Triggered by greeting",
		}
		if err := tx.Create(&flow).Error; err != nil {
			return err
		}
		log.Printf("Flow: %s (%s)", flow.Name, flow.ID)

		trigger := models.Trigger{
			BotID:     bot.ID,
			FlowID:    flow.ID,
			SessionID: nil, // global to the bot
			Keyword:   "hola",
			MatchType: models.MatchContains,
			Scope:     models.ScopeIncoming,
			IsActive:  true,
		}
		if err := tx.Create(&trigger).Error; err != nil {
			return err
		}
		log.Printf("Global trigger: %q -> %s", trigger.Keyword, flow.Name)

		steps := []models.Step{
			{
				FlowID:    flow.ID,
				Order:     0,
				Type:      models.StepText,
				Content:   "¡Hola! Soy Sentinel, tu asistente virtual. 🤖",
				DelayMs:   1000,
				JitterPct: 10,
			},
			{
				FlowID:    flow.ID,
				Order:     1,
				Type:      models.StepPTT,
				MediaURL:  "https://example.com/media/sentinel_intro.ogg",
				DelayMs:   2500,
				JitterPct: 20,
			},
			{
				FlowID:    flow.ID,
				Order:     2,
				Type:      models.StepImage,
				MediaURL:  "https://via.placeholder.com/300.png?text=Sentinel+Demo",
				DelayMs:   1500,
				JitterPct: 10,
			},
		}
		if err := tx.Create(&steps).Error; err != nil {
			return err
		}
		log.Println("Steps created (Text -> PTT -> Image)")
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to seed flow: %v", err)
	}

	log.Println("Seeding complete")
}
