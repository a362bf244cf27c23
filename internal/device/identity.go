package device

import (
	"strings"

	"github.com/rjboer/GoWSA/internal/wsaerr"
)

// Identity is the parsed *IDN? response.
type Identity struct {
	Manufacturer string
	Model        string
	Serial       string
	Firmware     string
}

// ParseIdentity splits a "maker,model,serial,firmware" identity line. Serial
// and firmware may be absent on older firmware.
func ParseIdentity(resp string) (Identity, error) {
	parts := strings.Split(strings.TrimSpace(resp), ",")
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return Identity{}, wsaerr.Errorf(wsaerr.RespUnknown, "parse identity", "unexpected *IDN? response %q", resp)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	id := Identity{Manufacturer: parts[0], Model: parts[1]}
	if len(parts) > 2 {
		id.Serial = parts[2]
	}
	if len(parts) > 3 {
		id.Firmware = parts[3]
	}
	return id, nil
}

// FromIdentity builds the descriptor for the identified analyser. Front ends
// that do not report their name are assumed to be RFE0560 units.
func FromIdentity(id Identity) (Descriptor, error) {
	rfe := "RFE0560"
	if strings.Contains(strings.ToUpper(id.Model), "RFE0440") {
		rfe = "RFE0440"
	}
	d, err := ForModel(rfe)
	if err != nil {
		return Descriptor{}, err
	}
	d.ProductModel = id.Model
	d.ProductSerial = id.Serial
	d.FirmwareVersion = id.Firmware
	return d, nil
}
