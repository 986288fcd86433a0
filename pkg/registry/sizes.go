package registry

import "github.com/pzverkov/quantum-agility/internal/constants"

// publishedKEMSizes are the parameter-set sizes of families whose backend is
// not compiled in. They keep the catalog complete for size validation and
// documentation.
func publishedKEMSizes(f KEMFamily) (name string, pk, sk, ct, ss int) {
	switch f {
	case HQC:
		return "HQC-256", constants.HQCPublicKeySize, constants.HQCPrivateKeySize,
			constants.HQCCiphertextSize, constants.HQCSharedSecretSize
	case McEliece:
		return "Classic-McEliece-348864", constants.McEliecePublicKeySize, constants.McEliecePrivateKeySize,
			constants.McElieceCiphertextSize, constants.McElieceSharedSecretSize
	case Lattice:
		return "ML-KEM-1024", constants.MLKEMPublicKeySize, constants.MLKEMPrivateKeySize,
			constants.MLKEMCiphertextSize, constants.MLKEMSharedSecretSize
	}
	return f.String(), 0, 0, 0, 0
}

func publishedSignatureSizes(f SignatureFamily) (name string, pk, sk, sig int) {
	switch f {
	case CompactLatticeDSA:
		return "Falcon-padded-1024", constants.FalconPublicKeySize, constants.FalconPrivateKeySize,
			constants.FalconSignatureSize
	case LatticeDSA:
		return "ML-DSA-87", constants.MLDSAPublicKeySize, constants.MLDSAPrivateKeySize,
			constants.MLDSASignatureSize
	case HashDSA:
		return "SLH-DSA-SHAKE-256f", constants.SLHDSAPublicKeySize, constants.SLHDSAPrivateKeySize,
			constants.SLHDSASignatureSize
	}
	return f.String(), 0, 0, 0
}
