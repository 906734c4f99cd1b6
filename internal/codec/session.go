package codec

import (
	"venuetrader/internal/schema"

	"github.com/yanun0323/errors"
)

// EncodeLogin serializes a login request.
func EncodeLogin(dst []byte, login schema.Login) []byte {
	dst = dst[:0]
	dst = appendString(dst, 1, login.User)
	dst = appendString(dst, 2, login.Password)
	dst = appendString(dst, 3, login.AccessToken)
	dst = appendInt(dst, 4, int64(login.ConnectionType))
	return dst
}

// DecodeLogin parses a login request.
func DecodeLogin(src []byte) (schema.Login, error) {
	var login schema.Login
	err := walk(src, func(f field) error {
		switch f.num {
		case 1:
			login.User = f.str()
		case 2:
			login.Password = f.str()
		case 3:
			login.AccessToken = f.str()
		case 4:
			login.ConnectionType = schema.ConnectionType(f.int32())
		}
		return nil
	})
	if err != nil {
		return schema.Login{}, errors.Wrap(err, "decode login")
	}
	return login, nil
}

// EncodeLoginResponse serializes a login response.
func EncodeLoginResponse(dst []byte, resp schema.LoginResponse) []byte {
	dst = dst[:0]
	dst = appendBool(dst, 1, resp.Success)
	dst = appendString(dst, 2, resp.Msg)
	return dst
}

// DecodeLoginResponse parses a login response.
func DecodeLoginResponse(src []byte) (schema.LoginResponse, error) {
	var resp schema.LoginResponse
	err := walk(src, func(f field) error {
		switch f.num {
		case 1:
			resp.Success = f.boolean()
		case 2:
			resp.Msg = f.str()
		}
		return nil
	})
	if err != nil {
		return schema.LoginResponse{}, errors.Wrap(err, "decode login response")
	}
	return resp, nil
}

// EncodeError serializes a venue error.
func EncodeError(dst []byte, e schema.Error) []byte {
	dst = dst[:0]
	dst = appendInt(dst, 1, int64(e.Code))
	dst = appendString(dst, 2, e.Msg)
	return dst
}

// DecodeError parses a venue error.
func DecodeError(src []byte) (schema.Error, error) {
	var e schema.Error
	err := walk(src, func(f field) error {
		switch f.num {
		case 1:
			e.Code = f.int32()
		case 2:
			e.Msg = f.str()
		}
		return nil
	})
	if err != nil {
		return schema.Error{}, errors.Wrap(err, "decode error")
	}
	return e, nil
}

// EncodeNinjaInfo serializes a venue info response.
func EncodeNinjaInfo(dst []byte, info schema.NinjaInfo) []byte {
	return appendString(dst[:0], 1, info.Name)
}

// DecodeNinjaInfo parses a venue info response.
func DecodeNinjaInfo(src []byte) (schema.NinjaInfo, error) {
	var info schema.NinjaInfo
	err := walk(src, func(f field) error {
		if f.num == 1 {
			info.Name = f.str()
		}
		return nil
	})
	if err != nil {
		return schema.NinjaInfo{}, errors.Wrap(err, "decode ninja info")
	}
	return info, nil
}

// EncodeAccounts serializes an accounts response.
func EncodeAccounts(dst []byte, acc schema.Accounts) []byte {
	dst = dst[:0]
	for _, a := range acc.Accounts {
		dst = appendBytes(dst, 1, []byte(a))
	}
	return dst
}

// DecodeAccounts parses an accounts response.
func DecodeAccounts(src []byte) (schema.Accounts, error) {
	var acc schema.Accounts
	err := walk(src, func(f field) error {
		if f.num == 1 {
			acc.Accounts = append(acc.Accounts, f.str())
		}
		return nil
	})
	if err != nil {
		return schema.Accounts{}, errors.Wrap(err, "decode accounts")
	}
	return acc, nil
}

// EncodeWorkingRules serializes a working rules response.
func EncodeWorkingRules(dst []byte, rules schema.WorkingRules) []byte {
	dst = dst[:0]
	for _, r := range rules.Rules {
		dst = appendMessage(dst, 1, func(b []byte) []byte {
			b = appendString(b, 1, r.Prefix)
			b = appendInt(b, 2, int64(r.WorkType))
			return b
		})
	}
	return dst
}

// DecodeWorkingRules parses a working rules response.
func DecodeWorkingRules(src []byte) (schema.WorkingRules, error) {
	var rules schema.WorkingRules
	err := walk(src, func(f field) error {
		if f.num != 1 {
			return nil
		}
		var r schema.WorkingRule
		err := walk(f.bytes, func(g field) error {
			switch g.num {
			case 1:
				r.Prefix = g.str()
			case 2:
				r.WorkType = g.int32()
			}
			return nil
		})
		rules.Rules = append(rules.Rules, r)
		return err
	})
	if err != nil {
		return schema.WorkingRules{}, errors.Wrap(err, "decode working rules")
	}
	return rules, nil
}

// EncodePriceFeedStatus serializes a price feed status response.
func EncodePriceFeedStatus(dst []byte, st schema.PriceFeedStatus) []byte {
	return appendInt(dst[:0], 1, int64(st.Status))
}

// DecodePriceFeedStatus parses a price feed status response.
func DecodePriceFeedStatus(src []byte) (schema.PriceFeedStatus, error) {
	var st schema.PriceFeedStatus
	err := walk(src, func(f field) error {
		if f.num == 1 {
			st.Status = f.int32()
		}
		return nil
	})
	if err != nil {
		return schema.PriceFeedStatus{}, errors.Wrap(err, "decode price feed status")
	}
	return st, nil
}

// EncodeSheets serializes a sheets request or response.
func EncodeSheets(dst []byte, sheets schema.Sheets) []byte {
	dst = dst[:0]
	for _, s := range sheets.Sheets {
		dst = appendMessage(dst, 1, func(b []byte) []byte {
			b = appendString(b, 1, s.Name)
			for _, c := range s.Contracts {
				b = appendContractField(b, 2, c)
			}
			return b
		})
	}
	return dst
}

// DecodeSheets parses a sheets request or response.
func DecodeSheets(src []byte) (schema.Sheets, error) {
	var sheets schema.Sheets
	err := walk(src, func(f field) error {
		if f.num != 1 {
			return nil
		}
		var s schema.Sheet
		err := walk(f.bytes, func(g field) error {
			switch g.num {
			case 1:
				s.Name = g.str()
			case 2:
				c, err := decodeContract(g.bytes)
				if err != nil {
					return err
				}
				s.Contracts = append(s.Contracts, c)
			}
			return nil
		})
		sheets.Sheets = append(sheets.Sheets, s)
		return err
	})
	if err != nil {
		return schema.Sheets{}, errors.Wrap(err, "decode sheets")
	}
	return sheets, nil
}
