package securitypolicy

// NonePolicy is the identity policy: signatures are empty, encryption is a
// pass-through (spec §4.B).
type NonePolicy struct{}

func NewNonePolicy() *NonePolicy { return &NonePolicy{} }

func (NonePolicy) URI() string { return PolicyNoneURI }

func (NonePolicy) AsymSign([]byte, []byte) ([]byte, error)      { return nil, nil }
func (NonePolicy) AsymVerify([]byte, []byte, []byte) error      { return nil }
func (NonePolicy) AsymEncrypt(_ []byte, plain []byte) ([]byte, error) { return plain, nil }
func (NonePolicy) AsymDecrypt(_ []byte, ct []byte) ([]byte, error)    { return ct, nil }

func (NonePolicy) AsymSignatureSize([]byte) int         { return 0 }
func (NonePolicy) AsymPlaintextBlockSize([]byte) int    { return 0 }
func (NonePolicy) AsymCipherTextBlockSize([]byte) int   { return 0 }

func (NonePolicy) SymSign([]byte, []byte) ([]byte, error)      { return nil, nil }
func (NonePolicy) SymVerify([]byte, []byte, []byte) error      { return nil }
func (NonePolicy) SymEncrypt(_, _ []byte, plain []byte) ([]byte, error) { return plain, nil }
func (NonePolicy) SymDecrypt(_, _ []byte, ct []byte) ([]byte, error)    { return ct, nil }
func (NonePolicy) SymSignatureSize() int      { return 0 }
func (NonePolicy) SymEncryptionBlockSize() int { return 1 }
func (NonePolicy) SymEncryptionKeySize() int  { return 0 }
func (NonePolicy) SymSigningKeySize() int     { return 0 }

func (NonePolicy) DeriveKeys(_, _ []byte) (DerivedKeys, DerivedKeys, error) {
	return DerivedKeys{}, DerivedKeys{}, nil
}

func (NonePolicy) CertificateThumbprint([]byte) ([]byte, error) { return nil, nil }

func (NonePolicy) GenerateNonce(length int) ([]byte, error) { return randomBytes(length) }
