package handler

import (
	"context"

	"github.com/ethiomarket/marketd/internal/listing"
	"github.com/ethiomarket/marketd/internal/metrics"
	"github.com/ethiomarket/marketd/internal/model"
	"github.com/ethiomarket/marketd/internal/visibility"
)

// 各サービスをラップしてドメインメトリクスを記録するデコレータ。
// 埋め込みによりメトリクス対象外のメソッドはそのまま委譲される。

type instrumentedListingService struct {
	ListingServiceInterface
	metrics metrics.MetricsCollector
}

func (s *instrumentedListingService) Create(ctx context.Context, viewer visibility.Identity, input listing.CreateInput) (*model.Listing, error) {
	created, err := s.ListingServiceInterface.Create(ctx, viewer, input)
	if err == nil {
		s.metrics.RecordListingCreated(string(created.Category))
	}
	return created, err
}

type instrumentedModerationService struct {
	ModerationServiceInterface
	metrics metrics.MetricsCollector
}

func (s *instrumentedModerationService) Approve(ctx context.Context, adminID, listingID string) (*model.Listing, error) {
	approved, err := s.ModerationServiceInterface.Approve(ctx, adminID, listingID)
	if err == nil {
		s.metrics.RecordListingReviewed("approved")
	}
	return approved, err
}

func (s *instrumentedModerationService) Reject(ctx context.Context, adminID, listingID, reason string) (*model.Listing, error) {
	rejected, err := s.ModerationServiceInterface.Reject(ctx, adminID, listingID, reason)
	if err == nil {
		s.metrics.RecordListingReviewed("rejected")
	}
	return rejected, err
}

type instrumentedMessageService struct {
	MessageServiceInterface
	metrics metrics.MetricsCollector
}

func (s *instrumentedMessageService) Send(ctx context.Context, sender visibility.Identity, listingID, receiverID, content string) (*model.Message, error) {
	msg, err := s.MessageServiceInterface.Send(ctx, sender, listingID, receiverID, content)
	if err == nil {
		s.metrics.RecordMessageSent()
	}
	return msg, err
}

type instrumentedOTPService struct {
	OTPServiceInterface
	metrics metrics.MetricsCollector
}

func (s *instrumentedOTPService) Send(ctx context.Context, phone string) error {
	err := s.OTPServiceInterface.Send(ctx, phone)
	s.metrics.RecordSMSSent(err == nil)
	return err
}
