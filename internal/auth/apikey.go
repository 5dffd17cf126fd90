package auth

// fingerprintLen bounds how much of a presented key may appear in logs.
const fingerprintLen = 8

// MachineKeyValidator checks bearer credentials presented by agent
// callers against the configured machine API key.
type MachineKeyValidator struct {
	key string
}

// NewMachineKeyValidator builds a validator. An empty key means no
// machine access is configured and every bearer request is rejected.
func NewMachineKeyValidator(key string) *MachineKeyValidator {
	return &MachineKeyValidator{key: key}
}

// Configured reports whether a machine key is set.
func (v *MachineKeyValidator) Configured() bool {
	return v.key != ""
}

// Validate compares the presented key against the configured one in
// constant time: length mismatch fails, then an accumulated byte scan
// that does not short-circuit. A missing configured key fails closed.
func (v *MachineKeyValidator) Validate(presented string) bool {
	if v.key == "" {
		return false
	}
	if len(presented) != len(v.key) {
		return false
	}
	var mismatch byte
	for i := 0; i < len(presented); i++ {
		mismatch |= presented[i] ^ v.key[i]
	}
	return mismatch == 0
}

// Fingerprint returns a loggable prefix of a presented key, never the
// full value. Returns "" when the key is too short to fingerprint.
func Fingerprint(key string) string {
	if len(key) < fingerprintLen {
		return ""
	}
	return key[:fingerprintLen] + "..."
}
