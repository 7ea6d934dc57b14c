package access

// ErrAlreadyRedeemed is returned when redeeming a code that has already
// been used.
type ErrAlreadyRedeemed struct {
	Code       string
	RedeemedBy string
}

func NewErrAlreadyRedeemed(code, redeemedBy string) ErrAlreadyRedeemed {
	return ErrAlreadyRedeemed{Code: code, RedeemedBy: redeemedBy}
}

func (e ErrAlreadyRedeemed) Error() string {
	return "access code already redeemed: " + e.Code
}
