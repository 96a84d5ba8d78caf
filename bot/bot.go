package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Chromeninja/test-squadron-discord-bot-sub002/bulk"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/config"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/coordinator"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/database"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/handlers"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/models"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/rsi"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/scheduler"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

// Command defines the interface for a bot command.
type Command interface {
	Definition() *discordgo.ApplicationCommand
}

// Bot encapsulates the bot's state and the verification pipeline it drives.
type Bot struct {
	Session  *discordgo.Session
	Commands map[string]Command

	DB      *database.VerificationDB
	Service *rsi.Service
	Queue   *bulk.Queue
	Recheck *scheduler.Recheck

	gate   coordinator.Gate
	cancel context.CancelFunc
}

// NewBot creates and initializes a new Bot instance with the full pipeline:
// one fetch service, one persistence layer, one bulk queue, one recheck
// driver, all sharing one coordination gate.
func NewBot() (*Bot, error) {
	config.LoadConfig()
	token := viper.GetString("BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("no bot token provided")
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	db, err := database.NewVerificationDB(viper.GetString("database.path"))
	if err != nil {
		return nil, fmt.Errorf("error opening verification database: %w", err)
	}

	var rsiCfg models.RSIConfig
	if err := viper.UnmarshalKey("rsi", &rsiCfg); err != nil {
		return nil, fmt.Errorf("error decoding rsi config: %w", err)
	}
	service := rsi.NewService(rsi.NewHTTPFetcher(30*time.Second), rsiCfg)

	var bulkCfg models.BulkCheckConfig
	if err := viper.UnmarshalKey("bulk_check", &bulkCfg); err != nil {
		return nil, fmt.Errorf("error decoding bulk_check config: %w", err)
	}

	var recheckCfg models.AutoRecheckConfig
	if err := viper.UnmarshalKey("auto_recheck", &recheckCfg); err != nil {
		return nil, fmt.Errorf("error decoding auto_recheck config: %w", err)
	}

	b := &Bot{
		Session:  dg,
		Commands: make(map[string]Command),
		DB:       db,
		Service:  service,
	}

	members := &DiscordMemberResolver{Session: dg}
	delivery := &DiscordDelivery{Session: dg}
	remediation := &DiscordRemediation{Session: dg, DB: db}

	b.Queue = bulk.NewQueue(bulkCfg, service, db, members, delivery, &b.gate)
	b.Recheck = scheduler.NewRecheck(recheckCfg, service, db, &LoggingGuildSync{Session: dg}, remediation, &b.gate)

	return b, nil
}

// RegisterCommands registers the provided commands.
func (b *Bot) RegisterCommands(commands []Command) {
	for _, cmd := range commands {
		b.Commands[cmd.Definition().Name] = cmd
	}
}

// Start opens the bot's session, registers handlers and launches the
// background pipeline.
func (b *Bot) Start() error {
	handlers.Init(&handlers.Deps{
		DB:      b.DB,
		Service: b.Service,
		Queue:   b.Queue,
	})
	b.Session.AddHandler(handlers.CommandDispatcher)

	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}
	utils.InitLogger(b.Session)

	// Register slash commands
	for _, cmd := range b.Commands {
		_, err := b.Session.ApplicationCommandCreate(b.Session.State.User.ID, "", cmd.Definition())
		if err != nil {
			log.Printf("Cannot create '%v' command: %v", cmd.Definition().Name, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.Queue.Start(ctx)
	startScheduler(ctx, b.Recheck)

	fmt.Println("Bot is now running. Press CTRL-C to exit.")
	return nil
}

// Stop gracefully shuts the pipeline down: scheduler first, then the queue
// worker (an in-flight job is abandoned), then the session and database.
func (b *Bot) Stop() {
	stopScheduler()
	if b.cancel != nil {
		b.cancel()
	}
	if b.Queue != nil {
		b.Queue.Stop()
	}
	if b.Session != nil {
		b.Session.Close()
	}
	if b.DB != nil {
		b.DB.Close()
	}
	fmt.Println("Bot stopped gracefully.")
}

// Run is the main entry point for the bot application.
func Run(commands []Command) {
	bot, err := NewBot()
	if err != nil {
		log.Fatalf("Error initializing bot: %v", err)
	}

	bot.RegisterCommands(commands)

	if err := bot.Start(); err != nil {
		log.Fatalf("Error starting bot: %v", err)
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	bot.Stop()
}
