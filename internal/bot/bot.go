package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"ton_mining/internal/domain"
	"ton_mining/internal/economy"
	"ton_mining/internal/logger"
	"ton_mining/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of the Bot API the bot needs to reply.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Deps are the services behind the bot commands.
type Deps struct {
	Users     *service.UserService
	Mining    *service.MiningService
	Referrals *service.ReferralService
	Admin     *service.AdminService
	WebAppURL string
	AdminIDs  []int64
}

// Bot is the companion chat bot of the mining app.
type Bot struct {
	api    *tgbotapi.BotAPI
	sender Sender
	deps   Deps
	stopCh chan struct{}
	wg     sync.WaitGroup
	log    *slog.Logger
}

// New authorizes token against the Bot API.
func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	b := newBot(api, deps)
	b.api = api
	b.log.Info("bot authorized", "username", api.Self.UserName)
	return b, nil
}

func newBot(sender Sender, deps Deps) *Bot {
	return &Bot{
		sender: sender,
		deps:   deps,
		stopCh: make(chan struct{}),
		log:    logger.With("component", "bot"),
	}
}

// Start listens for commands until Stop is called.
func (b *Bot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("starting bot update loop")

	for {
		select {
		case <-b.stopCh:
			b.log.Info("stopping bot update loop")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.From == nil || !update.Message.IsCommand() {
				continue
			}

			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleCommand(msg)
			}(update.Message)
		}
	}
}

// Stop gracefully stops the bot
func (b *Bot) Stop() {
	b.log.Info("stopping bot...")
	close(b.stopCh)
	if b.api != nil {
		b.api.StopReceivingUpdates()
	}

	// Wait for pending handlers with timeout
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("bot stopped gracefully")
	case <-time.After(10 * time.Second):
		b.log.Warn("bot shutdown timeout, some handlers may not have completed")
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	for _, id := range b.deps.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = logger.NewContext(ctx, "user_id", msg.From.ID, "command", msg.Command())

	reply := b.respond(ctx, msg)
	if _, err := b.sender.Send(reply); err != nil {
		logger.WithContext(ctx).Error("error sending message", "error", err)
	}
}

// respond runs one command and builds the reply.
func (b *Bot) respond(ctx context.Context, msg *tgbotapi.Message) tgbotapi.MessageConfig {
	profile := service.Profile{
		ID:        msg.From.ID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
	}
	args := strings.TrimSpace(msg.CommandArguments())

	var (
		text    string
		withApp bool
	)
	switch cmd := msg.Command(); cmd {
	case "start":
		text, withApp = b.handleStart(ctx, profile, args), true
	case "help":
		text = helpMessage
	case "mine":
		text = b.handleMine(ctx, profile)
	case "balance":
		text, withApp = b.handleBalance(ctx, profile), true
	case "stats":
		text, withApp = b.handleStats(ctx, profile), true
	case "referral":
		text = b.handleReferral(ctx, profile)
	case "user", "top", "platform":
		if !b.isAdmin(msg.From.ID) {
			text = unknownCommand
			break
		}
		switch cmd {
		case "user":
			text = b.handleUser(ctx, args)
		case "top":
			text = b.handleTop(ctx, args)
		default:
			text = b.handlePlatform(ctx)
		}
	default:
		text = unknownCommand
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyToMessageID = msg.MessageID
	if withApp && b.deps.WebAppURL != "" {
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("🚀 Open TON Mining", b.deps.WebAppURL),
			),
		)
	}
	return reply
}

const unknownCommand = "❌ Unknown command. Use /help to see the list."

const helpMessage = `<b>⛏ TON Mining</b>

/start - Open the app
/mine - Mine once (cooldown applies)
/balance - Your TON balance
/stats - Your mining stats
/referral - Your referral link
/help - This message`

const adminHelp = `

<b>Admin:</b>
/user &lt;tg_id&gt; - User details
/top [limit] - Top miners
/platform - Platform statistics`

func (b *Bot) account(ctx context.Context, p service.Profile) (*domain.Account, error) {
	acc, _, err := b.deps.Users.EnsureAccount(ctx, p)
	return acc, err
}

func (b *Bot) handleStart(ctx context.Context, p service.Profile, code string) string {
	res, err := b.deps.Users.Start(ctx, p, code)
	if err != nil {
		logger.WithContext(ctx).Error("start failed", "error", err)
		return "❌ Something went wrong, please try again later."
	}

	name := p.FirstName
	if name == "" {
		name = "miner"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "👋 Hello %s! Welcome to TON Mining.", html.EscapeString(name))
	if code != "" {
		switch {
		case res.ReferralErr == nil && res.Account.IsReferred():
			sb.WriteString("\n\n🎁 Referral code applied: your mining power is boosted.")
		case errors.Is(res.ReferralErr, service.ErrReferral):
			fmt.Fprintf(&sb, "\n\n⚠️ Referral code not applied: %s.", html.EscapeString(res.ReferralErr.Error()))
		}
	}
	if b.isAdmin(p.ID) {
		sb.WriteString("\n\n" + helpMessage + adminHelp)
	}
	return sb.String()
}

func (b *Bot) handleMine(ctx context.Context, p service.Profile) string {
	if _, err := b.account(ctx, p); err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}

	res, err := b.deps.Mining.Mine(ctx, p.ID)
	var cooldown *domain.CooldownError
	switch {
	case errors.As(err, &cooldown):
		return fmt.Sprintf("⏳ Mining is cooling down. Try again in %s.", formatWait(cooldown.Remaining))
	case errors.Is(err, service.ErrSessionActive):
		return "⛏ You already have a mining session running in the app."
	case err != nil:
		logger.WithContext(ctx).Error("mine failed", "error", err)
		return "❌ Mining failed, please try again later."
	}

	return fmt.Sprintf("⛏ You mined <b>%s TON</b>.\n💰 Balance: <b>%s TON</b>",
		res.Reward.String(), res.Account.Balance.String())
}

func (b *Bot) handleBalance(ctx context.Context, p service.Profile) string {
	acc, err := b.account(ctx, p)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	return fmt.Sprintf(`<b>💰 Your balance</b>

• User ID: <code>%d</code>
• Balance: <b>%s TON</b>
• Total earned: %s TON`,
		acc.ID, acc.Balance.String(), acc.TotalEarned.String())
}

func (b *Bot) handleStats(ctx context.Context, p service.Profile) string {
	acc, err := b.account(ctx, p)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	rank, _, err := b.deps.Users.Rank(ctx, acc.ID)
	if err != nil {
		rank = 0
	}

	autoClaim := "no"
	if acc.HasAutoClaim {
		autoClaim = "yes"
	}
	return fmt.Sprintf(`<b>📊 Mining stats</b>

• Mining power: %s
• Boost: level %d (x%s)
• Timer: level %d (%dh sessions)
• Reward per session: %s TON
• Auto-claim: %s
• Total earned: %s TON
• Referrals: %d
• Rank: #%d`,
		acc.MiningPower.String(),
		acc.BoostLevel, economy.BoostMultiplier(acc.BoostLevel).String(),
		acc.TimerLevel, economy.TimerHours(acc.TimerLevel),
		economy.Reward(acc.MiningPower, acc.BoostLevel).String(),
		autoClaim,
		acc.TotalEarned.String(),
		len(acc.Referrals),
		rank,
	)
}

func (b *Bot) handleReferral(ctx context.Context, p service.Profile) string {
	if _, err := b.account(ctx, p); err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	stats, err := b.deps.Referrals.Stats(ctx, p.ID)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	return fmt.Sprintf(`<b>🔗 Your referral link</b>

<code>%s</code>

Invite friends and receive 5%% of everything they mine.
• Referrals: %d
• Earned from referrals: %s TON`,
		stats.Link, stats.Count, stats.Earnings.String())
}

func (b *Bot) handleUser(ctx context.Context, args string) string {
	id, err := strconv.ParseInt(strings.TrimPrefix(args, "@"), 10, 64)
	if err != nil {
		return "❌ Usage: /user &lt;tg_id&gt;"
	}
	acc, err := b.deps.Users.Get(ctx, id)
	if err != nil {
		return fmt.Sprintf("❌ User not found: %v", err)
	}

	referredBy := "-"
	if acc.ReferredBy != nil {
		referredBy = strconv.FormatInt(*acc.ReferredBy, 10)
	}
	lastMined := "never"
	if acc.LastMiningTime != nil {
		lastMined = acc.LastMiningTime.Format("02.01.2006 15:04")
	}
	return fmt.Sprintf(`<b>👤 User</b>

• Telegram ID: %d
• Username: @%s
• Name: %s
• Balance: %s TON
• Total earned: %s TON
• Mining power: %s
• Timer / boost: %d / %d
• Auto-claim: %t
• Referral code: %s
• Referred by: %s
• Referrals: %d
• Wallet: %s
• Last mined: %s
• Registered: %s`,
		acc.ID,
		html.EscapeString(acc.Username),
		html.EscapeString(acc.FirstName),
		acc.Balance.String(),
		acc.TotalEarned.String(),
		acc.MiningPower.String(),
		acc.TimerLevel, acc.BoostLevel,
		acc.HasAutoClaim,
		acc.ReferralCode,
		referredBy,
		len(acc.Referrals),
		walletOrDash(acc.WalletAddress),
		lastMined,
		acc.CreatedAt.Format("02.01.2006 15:04"),
	)
}

func (b *Bot) handleTop(ctx context.Context, args string) string {
	limit := 10
	if args != "" {
		if n, err := strconv.Atoi(args); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	top, err := b.deps.Users.Top(ctx, limit)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	total, _ := b.deps.Users.Count(ctx)

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>🏆 Top %d miners</b> (of %d)\n\n", len(top), total)
	for i, acc := range top {
		name := acc.Username
		if name == "" {
			name = strconv.FormatInt(acc.ID, 10)
		}
		fmt.Fprintf(&sb, "%d. %s - %s TON\n", i+1, html.EscapeString(name), acc.TotalEarned.String())
	}
	return sb.String()
}

func (b *Bot) handlePlatform(ctx context.Context) string {
	if b.deps.Admin == nil {
		return unknownCommand
	}
	st, err := b.deps.Admin.GetStats(ctx)
	if err != nil {
		logger.WithContext(ctx).Error("platform stats failed", "error", err)
		return fmt.Sprintf("❌ Error: %v", err)
	}
	return fmt.Sprintf(`<b>📈 Platform</b>

• Users: %d (referred: %d)
• Mined today / week: %d / %d
• Active sessions: %d
• Auto-claim owners: %d
• Wallets linked: %d
• Balances: %s TON
• Total mined: %s TON
• Referral bonuses: %s TON
• Payments: %d ok, %d failed
• Revenue: %s TON`,
		st.TotalUsers, st.ReferredUsers,
		st.MinedToday, st.MinedWeek,
		st.ActiveSessions,
		st.AutoClaimOwners,
		st.WalletsLinked,
		st.TotalBalance.String(),
		st.TotalEarned.String(),
		st.ReferralPaid.String(),
		st.PaymentsDone, st.PaymentsFailed,
		st.PaymentsRevenue.String(),
	)
}

func walletOrDash(addr string) string {
	if addr == "" {
		return "-"
	}
	return "<code>" + addr + "</code>"
}

// formatWait renders d rounded up to whole seconds, e.g. "4m59s".
func formatWait(d time.Duration) string {
	if r := d % time.Second; r != 0 {
		d += time.Second - r
	}
	return d.String()
}
