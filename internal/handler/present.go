package handler

import (
	"time"

	"crowdstack-backend/internal/domain"
)

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func attendeeJSON(a domain.Attendee) map[string]any {
	var dob any
	if a.DateOfBirth != nil {
		dob = a.DateOfBirth.Format("2006-01-02")
	}
	return map[string]any{
		"id":            a.ID,
		"name":          a.Name,
		"surname":       a.Surname,
		"phone":         a.Phone,
		"email":         a.Email,
		"whatsapp":      a.Whatsapp,
		"date_of_birth": dob,
		"instagram":     a.Instagram,
		"tiktok":        a.Tiktok,
		"xp_points":     a.XPPoints,
		"avatar_url":    a.AvatarURL,
	}
}

func registrationJSON(reg domain.Registration) map[string]any {
	answers := make([]map[string]any, 0, len(reg.Answers))
	for _, a := range reg.Answers {
		answers = append(answers, map[string]any{"question_id": a.QuestionID, "answer": a.Answer})
	}
	return map[string]any{
		"id":                   reg.ID,
		"event_id":             reg.EventID,
		"attendee_id":          reg.AttendeeID,
		"booking_id":           reg.BookingID,
		"referral_promoter_id": reg.ReferralPromoterID,
		"status":               string(reg.Status),
		"checked_in":           reg.CheckedIn,
		"registered_at":        reg.RegisteredAt.UTC().Format(time.RFC3339),
		"answers":              answers,
	}
}

func checkinJSON(c *domain.Checkin) any {
	if c == nil {
		return nil
	}
	return map[string]any{
		"id":              c.ID,
		"registration_id": c.RegistrationID,
		"event_id":        c.EventID,
		"checked_in_at":   c.CheckedInAt.UTC().Format(time.RFC3339Nano),
		"checked_in_by":   c.CheckedInBy,
		"undo_at":         formatTime(c.UndoAt),
		"undone_by":       c.UndoneBy,
	}
}

func checkinStateJSON(s domain.CheckinState) map[string]any {
	return map[string]any{
		"registration": registrationJSON(s.Registration),
		"checkin":      checkinJSON(s.Checkin),
		"checked_in":   s.CheckedIn,
		"live_count":   s.LiveCount,
	}
}

func eventPromoterJSON(ep domain.EventPromoter) map[string]any {
	return map[string]any{
		"event_id":          ep.EventID,
		"promoter_id":       ep.PromoterID,
		"commission_type":   string(ep.CommissionType),
		"commission_config": ep.CommissionConfig,
		"updated_at":        ep.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func payoutRunJSON(run domain.PayoutRun) map[string]any {
	return map[string]any{
		"id":                    run.ID,
		"event_id":              run.EventID,
		"generated_by":          run.GeneratedBy,
		"generated_at":          run.GeneratedAt.UTC().Format(time.RFC3339),
		"statement_path":        run.StatementPath,
		"statement_error":       run.StatementError,
		"statement_rendered_at": formatTime(run.StatementRenderedAt),
	}
}

func payoutLineJSON(l domain.PayoutLine) map[string]any {
	return map[string]any{
		"id":                 l.ID,
		"payout_run_id":      l.PayoutRunID,
		"promoter_id":        l.PromoterID,
		"commission_type":    string(l.CommissionType),
		"checkins_count":     l.CheckinsCount,
		"commission_amount":  l.CommissionAmount.Amount,
		"currency":           l.CommissionAmount.Currency,
		"payment_status":     string(l.PaymentStatus),
		"payment_proof_path": l.PaymentProofPath,
		"payment_marked_by":  l.PaymentMarkedBy,
		"payment_marked_at":  formatTime(l.PaymentMarkedAt),
	}
}

func guestFlagJSON(f *domain.GuestFlag) any {
	if f == nil {
		return nil
	}
	return map[string]any{
		"id":            f.ID,
		"venue_id":      f.VenueID,
		"attendee_id":   f.AttendeeID,
		"strike_count":  f.StrikeCount,
		"permanent_ban": f.PermanentBan,
		"reason":        f.Reason,
		"expires_at":    formatTime(f.ExpiresAt),
		"flagged_by":    f.FlaggedBy,
		"updated_at":    f.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
