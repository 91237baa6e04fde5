package enrich

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/store"
)

// Processor dispatches a claimed job to the matching enrichment component
// and applies the outcome to the lead and its contact records. It is the
// only writer of lead/contact state.
type Processor struct {
	store     store.Store
	validator *Validator
	emails    *EmailExtractor
	socials   *SocialScraper
}

func NewProcessor(st store.Store, validator *Validator, emails *EmailExtractor, socials *SocialScraper) *Processor {
	return &Processor{store: st, validator: validator, emails: emails, socials: socials}
}

// Process runs the enrichment for one claimed job. An error return means
// the job attempt failed and is subject to the queue's retry policy.
func (p *Processor) Process(ctx context.Context, job *model.EnrichmentJob) error {
	lead, err := p.store.GetLead(ctx, job.LeadID)
	if err != nil {
		return eris.Wrapf(err, "processor: load lead %s", job.LeadID)
	}
	if lead == nil {
		return eris.Errorf("processor: lead not found: %s", job.LeadID)
	}

	switch job.Type {
	case model.JobTypeWebsiteValidation:
		return p.processWebsiteValidation(ctx, lead)
	case model.JobTypeEmailScraping:
		return p.processEmailScraping(ctx, lead)
	case model.JobTypeSocialScraping:
		return p.processSocialScraping(ctx, lead)
	default:
		return eris.Errorf("processor: unknown job type %q", job.Type)
	}
}

func (p *Processor) processWebsiteValidation(ctx context.Context, lead *model.Lead) error {
	if strings.TrimSpace(lead.Website) == "" {
		lead.WebsiteStatus = model.WebsiteStatusNoWebsite
		return eris.Wrap(p.store.UpdateLead(ctx, lead), "processor: update lead")
	}

	result := p.validator.Validate(ctx, lead.Website)
	lead.WebsiteStatus = result.Status
	if err := p.store.UpdateLead(ctx, lead); err != nil {
		return eris.Wrap(err, "processor: update lead")
	}

	zap.L().Info("website validated",
		zap.String("leadId", lead.ID),
		zap.String("websiteStatus", string(result.Status)),
		zap.Strings("issues", result.Issues))
	return nil
}

func (p *Processor) processEmailScraping(ctx context.Context, lead *model.Lead) error {
	if strings.TrimSpace(lead.Website) == "" {
		return nil
	}

	result := p.emails.Scrape(ctx, lead.Website)
	zap.L().Info("email scrape finished",
		zap.String("leadId", lead.ID),
		zap.Int("emailsFound", len(result.Emails)),
		zap.Int("pagesScraped", result.PagesScraped),
		zap.Bool("robotsAllowed", result.RobotsAllowed))

	if len(result.Emails) == 0 {
		return nil
	}

	existing, err := p.store.ListContacts(ctx, lead.ID)
	if err != nil {
		return eris.Wrap(err, "processor: list contacts")
	}
	byEmail := map[string]*model.ContactInfo{}
	for i := range existing {
		if existing[i].Email != "" {
			byEmail[strings.ToLower(existing[i].Email)] = &existing[i]
		}
	}

	for _, fe := range result.Emails {
		if contact, ok := byEmail[fe.Email]; ok {
			contact.EmailSource = fe.Source
			contact.EmailConfidence = fe.Confidence
			if err := p.store.UpdateContact(ctx, contact); err != nil {
				return eris.Wrap(err, "processor: update contact")
			}
			continue
		}
		_, err := p.store.CreateContact(ctx, model.ContactInfo{
			LeadID:          lead.ID,
			Email:           fe.Email,
			EmailSource:     fe.Source,
			EmailConfidence: fe.Confidence,
		})
		if err != nil {
			return eris.Wrap(err, "processor: create contact")
		}
	}
	return nil
}

func (p *Processor) processSocialScraping(ctx context.Context, lead *model.Lead) error {
	if strings.TrimSpace(lead.Website) == "" {
		return nil
	}

	result := p.socials.Scrape(ctx, lead.Website)
	if result.Error != "" {
		zap.L().Debug("social scrape failed",
			zap.String("leadId", lead.ID),
			zap.String("error", result.Error))
	}
	if result.FoundURLs == 0 {
		return nil
	}

	contacts, err := p.store.ListContacts(ctx, lead.ID)
	if err != nil {
		return eris.Wrap(err, "processor: list contacts")
	}

	// Social URLs live on a single record per lead: merge into the oldest
	// contact row, never replacing a set value with an empty one.
	if len(contacts) == 0 {
		_, err := p.store.CreateContact(ctx, model.ContactInfo{
			LeadID:       lead.ID,
			FacebookURL:  result.FacebookURL,
			InstagramURL: result.InstagramURL,
			LinkedInURL:  result.LinkedInURL,
		})
		return eris.Wrap(err, "processor: create contact")
	}

	target := &contacts[0]
	changed := false
	if result.FacebookURL != "" && result.FacebookURL != target.FacebookURL {
		target.FacebookURL = result.FacebookURL
		changed = true
	}
	if result.InstagramURL != "" && result.InstagramURL != target.InstagramURL {
		target.InstagramURL = result.InstagramURL
		changed = true
	}
	if result.LinkedInURL != "" && result.LinkedInURL != target.LinkedInURL {
		target.LinkedInURL = result.LinkedInURL
		changed = true
	}
	if !changed {
		return nil
	}
	return eris.Wrap(p.store.UpdateContact(ctx, target), "processor: update contact")
}
