package decode

import "runtime"

// defaultHardwareCandidates returns the ordered hardware device types probed
// on this platform. The first candidate that opens a working session wins;
// all failures silently degrade to software decoding.
func defaultHardwareCandidates() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"videotoolbox"}
	case "windows":
		return []string{"d3d11va", "dxva2"}
	case "linux":
		return []string{"vaapi", "cuda"}
	default:
		return nil
	}
}
