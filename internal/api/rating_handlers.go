package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/rating"
)

// maxBatchSize caps the records accepted by one rate-batch request.
const maxBatchSize = 1000

// callRecordRequest is a normalized call-detail record as posted by vendor
// parsers.
type callRecordRequest struct {
	ID string `json:"id"`

	CallingNumber        string `json:"calling_number"`
	CallingPartition     string `json:"calling_partition"`
	CalledNumber         string `json:"called_number"`
	CalledPartition      string `json:"called_partition"`
	FinalCalledNumber    string `json:"final_called_number"`
	FinalCalledPartition string `json:"final_called_partition"`

	RedirectNumber    string `json:"redirect_number"`
	RedirectPartition string `json:"redirect_partition"`
	RedirectReason    int    `json:"redirect_reason"`

	FinalMobileCalledNumber    string `json:"final_mobile_called_number"`
	FinalMobileCalledPartition string `json:"final_mobile_called_partition"`

	JoinOnBehalfOf        int `json:"join_on_behalf_of"`
	TerminationOnBehalfOf int `json:"termination_on_behalf_of"`

	OriginDevice      string `json:"origin_device"`
	DestinationDevice string `json:"destination_device"`
	AuthCode          string `json:"auth_code"`

	StartTime time.Time `json:"start_time"`
	Duration  int       `json:"duration"`

	// Direction is "outbound" (default) or "inbound".
	Direction string `json:"direction"`
	// Internal, when present, is the parser's own internality decision.
	Internal *bool `json:"internal"`

	TransferCause int `json:"transfer_cause"`
}

// toRecord validates the request and converts it to a call record.
func (req *callRecordRequest) toRecord() (*models.CallRecord, string) {
	msg := firstError(
		validateStringLen("id", req.ID, maxIDLen),
		validateNumber("calling_number", req.CallingNumber),
		validateNumber("called_number", req.CalledNumber),
		validateNumber("final_called_number", req.FinalCalledNumber),
		validateNumber("redirect_number", req.RedirectNumber),
		validateNumber("final_mobile_called_number", req.FinalMobileCalledNumber),
		validateNumber("auth_code", req.AuthCode),
		validateStringLen("calling_partition", req.CallingPartition, maxPartitionLen),
		validateStringLen("called_partition", req.CalledPartition, maxPartitionLen),
		validateStringLen("final_called_partition", req.FinalCalledPartition, maxPartitionLen),
		validateStringLen("redirect_partition", req.RedirectPartition, maxPartitionLen),
		validateStringLen("final_mobile_called_partition", req.FinalMobileCalledPartition, maxPartitionLen),
		validateStringLen("origin_device", req.OriginDevice, maxPartitionLen),
		validateStringLen("destination_device", req.DestinationDevice, maxPartitionLen),
		validateRange("duration", req.Duration, 0, maxDurationSeconds),
		validateRange("transfer_cause", req.TransferCause, int(models.TransferNone), int(models.TransferConferenceAdd)),
	)
	if msg != "" {
		return nil, msg
	}
	if req.StartTime.IsZero() {
		return nil, "start_time is required"
	}

	var direction models.CallDirection
	switch req.Direction {
	case "", "outbound":
		direction = models.DirectionOutbound
	case "inbound":
		direction = models.DirectionInbound
	default:
		return nil, "direction must be outbound or inbound"
	}

	rec := &models.CallRecord{
		ID:                         req.ID,
		CallingNumber:              req.CallingNumber,
		CallingPartition:           req.CallingPartition,
		CalledNumber:               req.CalledNumber,
		CalledPartition:            req.CalledPartition,
		FinalCalledNumber:          req.FinalCalledNumber,
		FinalCalledPartition:       req.FinalCalledPartition,
		RedirectNumber:             req.RedirectNumber,
		RedirectPartition:          req.RedirectPartition,
		RedirectReason:             req.RedirectReason,
		FinalMobileCalledNumber:    req.FinalMobileCalledNumber,
		FinalMobileCalledPartition: req.FinalMobileCalledPartition,
		JoinOnBehalfOf:             req.JoinOnBehalfOf,
		TerminationOnBehalfOf:      req.TerminationOnBehalfOf,
		OriginDevice:               req.OriginDevice,
		DestinationDevice:          req.DestinationDevice,
		AuthCode:                   req.AuthCode,
		StartTime:                  req.StartTime,
		Duration:                   req.Duration,
		Direction:                  direction,
		TransferCause:              models.TransferCause(req.TransferCause),
	}
	if req.Internal != nil {
		rec.Internal = *req.Internal
		rec.InternalMarked = true
	}
	rec.RefreshDerived()
	return rec, ""
}

// ratedCallResponse is a rated record.
type ratedCallResponse struct {
	ID                    string          `json:"id,omitempty"`
	Path                  string          `json:"path"`
	Direction             string          `json:"direction"`
	Internal              bool            `json:"internal"`
	Extension             string          `json:"extension"`
	Dial                  string          `json:"dial"`
	EmployeeID            int64           `json:"employee_id,omitempty"`
	DestinationEmployeeID int64           `json:"destination_employee_id,omitempty"`
	AssignmentCause       string          `json:"assignment_cause"`
	TransferCause         string          `json:"transfer_cause"`
	TelephonyTypeID       int64           `json:"telephony_type_id"`
	TelephonyType         string          `json:"telephony_type"`
	OperatorID            int64           `json:"operator_id,omitempty"`
	Operator              string          `json:"operator,omitempty"`
	IndicatorID           int64           `json:"indicator_id,omitempty"`
	Destination           string          `json:"destination,omitempty"`
	TrunkID               int64           `json:"trunk_id,omitempty"`
	Duration              int             `json:"duration"`
	PricePerMinute        decimal.Decimal `json:"price_per_minute"`
	InitialPricePerMinute decimal.Decimal `json:"initial_price_per_minute"`
	VATIncluded           bool            `json:"vat_included"`
	VATRate               decimal.Decimal `json:"vat_rate"`
	ChargeBySecond        bool            `json:"charge_by_second"`
	BilledAmount          decimal.Decimal `json:"billed_amount"`
}

// quarantineResponse explains why a record was not rated. ID is set once the
// quarantine is stored.
type quarantineResponse struct {
	ID     string `json:"id,omitempty"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
	Step   string `json:"step"`
}

// outcomeResponse carries exactly one of Record and Quarantine.
type outcomeResponse struct {
	Record     *ratedCallResponse  `json:"record,omitempty"`
	Quarantine *quarantineResponse `json:"quarantine,omitempty"`
}

type rateBatchRequest struct {
	Records []callRecordRequest `json:"records"`
}

type rateBatchResponse struct {
	BatchID     string            `json:"batch_id"`
	Outcomes    []outcomeResponse `json:"outcomes"`
	Rated       int               `json:"rated"`
	Quarantined int               `json:"quarantined"`
}

func toRatedCallResponse(o rating.Outcome) *ratedCallResponse {
	rec := o.Record
	return &ratedCallResponse{
		ID:                    rec.ID,
		Path:                  o.Path.String(),
		Direction:             rec.Direction.String(),
		Internal:              rec.Internal,
		Extension:             rec.Extension,
		Dial:                  rec.Dial,
		EmployeeID:            rec.EmployeeID,
		DestinationEmployeeID: rec.DestinationEmployeeID,
		AssignmentCause:       rec.AssignmentCause.String(),
		TransferCause:         rec.TransferCause.String(),
		TelephonyTypeID:       rec.TelephonyTypeID,
		TelephonyType:         rec.TelephonyTypeName,
		OperatorID:            rec.OperatorID,
		Operator:              rec.OperatorName,
		IndicatorID:           rec.IndicatorID,
		Destination:           rec.DestinationDescription,
		TrunkID:               rec.TrunkID,
		Duration:              rec.Duration,
		PricePerMinute:        rec.PricePerMinute,
		InitialPricePerMinute: rec.InitialPricePerMinute,
		VATIncluded:           rec.VATIncluded,
		VATRate:               rec.VATRate,
		ChargeBySecond:        rec.ChargeBySecond,
		BilledAmount:          rec.BilledAmount,
	}
}

// parseLocationID reads the {id} URL parameter.
func parseLocationID(r *http.Request) (int64, string) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, "location id must be a positive integer"
	}
	return id, ""
}

// handleRate rates one record. Records that cannot be rated still answer
// 200, with the quarantine in place of the record.
func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	locationID, msg := parseLocationID(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req callRecordRequest
	if msg := readJSON(r, &req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	rec, msg := req.toRecord()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	out := s.engine.Rate(r.Context(), locationID, rec)
	writeJSON(w, http.StatusOK, s.outcome(r.Context(), locationID, out))
}

// handleRateBatch rates a batch of records for one location. Outcomes are in
// request order.
func (s *Server) handleRateBatch(w http.ResponseWriter, r *http.Request) {
	locationID, msg := parseLocationID(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req rateBatchRequest
	if msg := readJSON(r, &req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if len(req.Records) == 0 {
		writeError(w, http.StatusBadRequest, "records must not be empty")
		return
	}
	if len(req.Records) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("records must not exceed %d entries", maxBatchSize))
		return
	}

	records := make([]*models.CallRecord, len(req.Records))
	for i := range req.Records {
		rec, msg := req.Records[i].toRecord()
		if msg != "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("records[%d]: %s", i, msg))
			return
		}
		records[i] = rec
	}

	batchID := uuid.NewString()
	outcomes, err := s.engine.RateBatch(r.Context(), locationID, records)
	if err != nil {
		s.logger.Warn("rating batch aborted",
			"batch_id", batchID,
			"location_id", locationID,
			"records", len(records),
			"error", err,
		)
		writeError(w, http.StatusServiceUnavailable, "rating batch aborted")
		return
	}

	resp := rateBatchResponse{BatchID: batchID, Outcomes: make([]outcomeResponse, len(outcomes))}
	for i, o := range outcomes {
		resp.Outcomes[i] = s.outcome(r.Context(), locationID, o)
		if o.Quarantined() {
			resp.Quarantined++
		} else {
			resp.Rated++
		}
	}
	s.logger.Debug("rating batch done",
		"batch_id", batchID,
		"location_id", locationID,
		"rated", resp.Rated,
		"quarantined", resp.Quarantined,
	)
	writeJSON(w, http.StatusOK, resp)
}

// outcome builds the response for one outcome, storing quarantines first.
// A failed store is logged; the quarantine is still reported.
func (s *Server) outcome(ctx context.Context, locationID int64, o rating.Outcome) outcomeResponse {
	if !o.Quarantined() {
		return outcomeResponse{Record: toRatedCallResponse(o)}
	}

	q := &quarantineResponse{
		Kind:   string(o.Quarantine.Kind),
		Reason: o.Quarantine.Reason,
		Step:   o.Quarantine.Step,
	}
	if s.quarantines != nil {
		call := &models.QuarantinedCall{
			LocationID: locationID,
			Kind:       o.Quarantine.Kind,
			Reason:     o.Quarantine.Reason,
			Step:       o.Quarantine.Step,
		}
		if rec := o.Record; rec != nil {
			call.CallingNumber = rec.CallingNumber
			call.CalledNumber = rec.CalledNumber
			call.StartTime = rec.StartTime
			call.Duration = rec.Duration
		}
		if err := s.quarantines.Create(ctx, call); err != nil {
			s.logger.Error("failed to store quarantined call",
				"location_id", locationID,
				"kind", call.Kind,
				"error", err,
			)
		} else {
			q.ID = call.ID
		}
	}
	return outcomeResponse{Quarantine: q}
}
