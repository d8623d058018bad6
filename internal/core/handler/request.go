package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

var amountRegexp = regexp.MustCompile(`^\d{1,15}(\.\d{1,2})?$`)

var errInvalidPayload = errors.New("invalid request payload")

type InitRequest struct {
	CustomerXID string `json:"customer_xid" validate:"required,max=128"`
}

func (r *InitRequest) fromForm(v url.Values) error {
	r.CustomerXID = v.Get("customer_xid")
	return nil
}

type DisableRequest struct {
	IsDisabled bool `json:"is_disabled" validate:"required"`
}

func (r *DisableRequest) fromForm(v url.Values) error {
	raw := v.Get("is_disabled")
	if raw == "" {
		return nil
	}
	disabled, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("is_disabled: %w", err)
	}
	r.IsDisabled = disabled
	return nil
}

type TransactionRequest struct {
	Amount      json.Number `json:"amount" validate:"required"`
	ReferenceID string      `json:"reference_id" validate:"required,max=128"`
}

func (r *TransactionRequest) fromForm(v url.Values) error {
	r.Amount = json.Number(v.Get("amount"))
	r.ReferenceID = v.Get("reference_id")
	return nil
}

type formBinder interface {
	fromForm(url.Values) error
}

// bind decodes a JSON body, or a urlencoded or multipart form, and validates
// the result.
func bind(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst formBinder) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return errInvalidPayload
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return errInvalidPayload
		}
		if err := dst.fromForm(r.PostForm); err != nil {
			return err
		}
	default:
		if err := r.ParseForm(); err != nil {
			return errInvalidPayload
		}
		if err := dst.fromForm(r.PostForm); err != nil {
			return err
		}
	}

	if err := validate.Struct(dst); err != nil {
		return validationMessage(err)
	}
	return nil
}

func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", jsonName(fe.Field())))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", jsonName(fe.Field()), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", jsonName(fe.Field())))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func jsonName(field string) string {
	switch field {
	case "CustomerXID":
		return "customer_xid"
	case "IsDisabled":
		return "is_disabled"
	case "ReferenceID":
		return "reference_id"
	default:
		return strings.ToLower(field)
	}
}

// parseAmount only checks the shape of the number; positivity and precision
// are checked by the transaction engine.
func parseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	if !amountRegexp.MatchString(cleaned) {
		return decimal.Zero, fmt.Errorf("invalid amount format: %q", raw)
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse amount: %w", err)
	}
	return amount, nil
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}
