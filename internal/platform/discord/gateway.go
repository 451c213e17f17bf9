package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/forms"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util"
)

const (
	categoryMenuID  = "ticket-category"
	modalIDPrefix   = "ticket-modal-"
	closeButtonID   = "close-ticket"
	claimCommand    = "claim"
	closeCommand    = "close"
	exportCommand   = "transcript"
	panelColor      = 0x5865f2
	panelBannerText = "# 🎟️ Ticket system\nSelect a category below to open a private ticket."
)

// Gateway translates platform interactions into lifecycle calls. It is
// cosmetic glue: every decision with an invariant behind it lives in the
// service layer.
type Gateway struct {
	session   *discordgo.Session
	lifecycle *service.TicketLifecycle
	arbiter   *service.ClaimArbiter
	logger    *zap.Logger
	cfg       config.GatewayConfig
}

// NewGateway constructs the gateway glue.
func NewGateway(session *discordgo.Session, cfg config.GatewayConfig, lifecycle *service.TicketLifecycle, arbiter *service.ClaimArbiter, logger *zap.Logger) *Gateway {
	return &Gateway{
		session:   session,
		lifecycle: lifecycle,
		arbiter:   arbiter,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start registers the interaction handler, publishes the category panel and
// registers the slash commands. It must be called only after the recovery
// scan has completed: before it runs, no claim or close can be accepted.
func (g *Gateway) Start(ctx context.Context) error {
	g.session.AddHandler(g.onInteraction)

	if g.cfg.PanelChannelID != "" {
		if err := g.publishPanel(ctx); err != nil {
			g.logger.Error("failed to publish ticket panel", zap.Error(err))
		}
	}

	appID := g.session.State.User.ID
	commands := []*discordgo.ApplicationCommand{
		{Name: claimCommand, Description: "Claim this ticket"},
		{Name: closeCommand, Description: "Close this ticket"},
		{Name: exportCommand, Description: "Generate ticket transcript"},
	}
	for _, cmd := range commands {
		if _, err := g.session.ApplicationCommandCreate(appID, g.cfg.GuildID, cmd, discordgo.WithContext(ctx)); err != nil {
			g.logger.Error("failed to register command", zap.String("command", cmd.Name), zap.Error(err))
		}
	}
	return nil
}

func (g *Gateway) publishPanel(ctx context.Context) error {
	options := make([]discordgo.SelectMenuOption, 0)
	for _, category := range forms.Categories() {
		options = append(options, discordgo.SelectMenuOption{
			Label:       category.Label,
			Value:       category.Value,
			Description: category.Description,
		})
	}

	_, err := g.session.ChannelMessageSendComplex(g.cfg.PanelChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{
			{Description: panelBannerText, Color: panelColor},
		},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						CustomID:    categoryMenuID,
						Placeholder: "📂 Select your category",
						Options:     options,
					},
				},
			},
		},
	}, discordgo.WithContext(ctx))
	return err
}

func (g *Gateway) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		switch data.CustomID {
		case categoryMenuID:
			if len(data.Values) == 0 {
				return
			}
			g.showModal(i, data.Values[0])
		case closeButtonID:
			g.handleClose(ctx, i)
		}
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		if strings.HasPrefix(data.CustomID, modalIDPrefix) {
			g.handleSubmit(ctx, i, data)
		}
	case discordgo.InteractionApplicationCommand:
		switch i.ApplicationCommandData().Name {
		case claimCommand:
			g.handleClaim(ctx, i)
		case closeCommand:
			g.handleClose(ctx, i)
		case exportCommand:
			g.handleExport(ctx, i)
		}
	}
}

func (g *Gateway) showModal(i *discordgo.InteractionCreate, category string) {
	specs, err := forms.FieldsFor(category)
	if err != nil {
		g.replyEphemeral(i, "❌ Unknown ticket category.")
		return
	}

	rows := make([]discordgo.MessageComponent, 0, len(specs))
	for _, spec := range specs {
		style := discordgo.TextInputShort
		if spec.Multiline {
			style = discordgo.TextInputParagraph
		}
		rows = append(rows, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    spec.ID,
					Label:       spec.Label,
					Style:       style,
					Required:    spec.Required,
					MinLength:   spec.MinLength,
					MaxLength:   spec.MaxLength,
					Placeholder: spec.Placeholder,
				},
			},
		})
	}

	err = g.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   modalIDPrefix + category,
			Title:      fmt.Sprintf("Create a %s ticket", category),
			Components: rows,
		},
	})
	if err != nil {
		g.logger.Error("failed to show ticket modal", zap.String("category", category), zap.Error(err))
	}
}

func (g *Gateway) handleSubmit(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ModalSubmitInteractionData) {
	category := strings.TrimPrefix(data.CustomID, modalIDPrefix)
	specs, err := forms.FieldsFor(category)
	if err != nil {
		g.replyEphemeral(i, "❌ Unknown ticket category.")
		return
	}

	values := make(map[string]string)
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, component := range actionsRow.Components {
			if input, ok := component.(*discordgo.TextInput); ok {
				values[input.CustomID] = input.Value
			}
		}
	}

	responses := make([]domain.FieldValue, 0, len(specs))
	for _, spec := range specs {
		responses = append(responses, domain.FieldValue{Name: spec.Label, Value: values[spec.ID]})
	}

	user := interactionUser(i)
	if user == nil {
		return
	}
	ticket, err := g.lifecycle.Submit(ctx, domain.TicketRequest{
		SubmitterID:   user.ID,
		SubmitterName: user.Username,
		Category:      category,
		Responses:     responses,
	})
	if err != nil {
		g.replyEphemeral(i, submitErrorMessage(err))
		return
	}
	g.replyEphemeral(i, fmt.Sprintf("✅ Your ticket has been created here: <#%s>", ticket.ID))
}

func (g *Gateway) handleClaim(ctx context.Context, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if user == nil {
		return
	}
	_, err := g.arbiter.Claim(ctx, i.ChannelID, user.ID)
	switch {
	case err == nil:
		g.replyEphemeral(i, "✅ This ticket is now being handled by you.")
	case apperrors.IsCode(err, apperrors.CodeUnauthorized):
		g.replyEphemeral(i, "⛔ You do not have permission to claim this ticket.")
	case apperrors.IsCode(err, apperrors.CodeAlreadyClaimed):
		g.replyEphemeral(i, fmt.Sprintf("⚠️ This ticket is already being handled by <@%s>.", apperrors.ClaimantFromError(err)))
	case apperrors.IsCode(err, apperrors.CodeNotFound):
		g.replyEphemeral(i, "❌ This channel is not a registered ticket.")
	default:
		g.logger.Error("claim failed", zap.String("channel_id", i.ChannelID), zap.Error(err))
		g.replyEphemeral(i, "❌ Something went wrong while claiming the ticket.")
	}
}

func (g *Gateway) handleClose(ctx context.Context, i *discordgo.InteractionCreate) {
	_, err := g.lifecycle.Close(ctx, i.ChannelID)
	switch {
	case err == nil:
		g.replyEphemeral(i, "📁 Transcript saved. Deleting the ticket in 5 seconds.")
	case apperrors.IsCode(err, apperrors.CodeNotFound):
		g.replyEphemeral(i, "❌ This channel is not a registered ticket.")
	default:
		g.logger.Error("close failed", zap.String("channel_id", i.ChannelID), zap.Error(err))
		g.replyEphemeral(i, "❌ Something went wrong while closing the ticket.")
	}
}

func (g *Gateway) handleExport(ctx context.Context, i *discordgo.InteractionCreate) {
	doc, err := g.lifecycle.Export(ctx, i.ChannelID)
	switch {
	case err == nil:
		if err := g.sendDocument(ctx, i.ChannelID, doc.Filename, doc.Body); err != nil {
			g.logger.Error("transcript send failed", zap.String("channel_id", i.ChannelID), zap.Error(err))
			g.replyEphemeral(i, "❌ Could not deliver the transcript.")
			return
		}
		g.replyEphemeral(i, "📄 Transcript generated.")
	case apperrors.IsCode(err, apperrors.CodeNotFound):
		g.replyEphemeral(i, "❌ This channel is not a registered ticket.")
	default:
		g.logger.Error("transcript failed", zap.String("channel_id", i.ChannelID), zap.Error(err))
		g.replyEphemeral(i, "❌ Something went wrong while generating the transcript.")
	}
}

func (g *Gateway) sendDocument(ctx context.Context, channelID, filename string, body []byte) error {
	_, err := g.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("📥 Ticket transcript: %s", filename),
		Files: []*discordgo.File{
			{Name: filename, Reader: strings.NewReader(string(body))},
		},
	}, discordgo.WithContext(ctx))
	return err
}

func (g *Gateway) replyEphemeral(i *discordgo.InteractionCreate, content string) {
	err := g.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		g.logger.Warn("interaction reply failed", zap.Error(err))
	}
}

func submitErrorMessage(err error) string {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeThrottled:
		return "⏳ Please wait a moment before opening another ticket."
	case apperrors.CodeUnknownCategory:
		return "❌ Unknown ticket category."
	case apperrors.CodeValidationFailed:
		return "❌ Your answers did not pass validation, please try again."
	default:
		return "❌ Error while creating the ticket, please try again later."
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
