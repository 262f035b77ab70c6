// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package system

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVendorStrings(t *testing.T) {
	t.Parallel()

	require.Equal(t, "AMD", CpuAMD.String())
	require.Equal(t, "Intel", CpuIntel.String())
	require.Equal(t, "Unknown", CpuUnknown.String())

	require.Equal(t, "NVIDIA", GpuNVIDIA.String())
	require.Equal(t, "AMD", GpuAMD.String())
	require.Equal(t, "Intel", GpuIntel.String())
	require.Equal(t, "None (integrated/software)", GpuNone.String())

	require.Equal(t, "Desktop", Desktop.String())
	require.Equal(t, "Laptop", Laptop.String())
}

func TestExtractGpuModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		line   string
		vendor string
		want   string
	}{
		{
			name:   "nvidia with bracket",
			line:   "01:00.0 VGA compatible controller: NVIDIA Corporation AD104 [GeForce RTX 4070] (rev a1)",
			vendor: "NVIDIA",
			want:   "NVIDIA AD104",
		},
		{
			name:   "amd prefix stripped",
			line:   "03:00.0 VGA compatible controller: Advanced Micro Devices, Inc. Navi 31 [Radeon RX 7900 XTX]",
			vendor: "AMD",
			want:   "AMD Navi 31",
		},
		{
			name:   "intel prefix stripped",
			line:   "00:02.0 VGA compatible controller: Intel Corporation Raptor Lake-S GT1 [UHD Graphics 770]",
			vendor: "Intel",
			want:   "Intel Raptor Lake-S GT1",
		},
		{
			name:   "no colon",
			line:   "garbage line",
			vendor: "NVIDIA",
			want:   "",
		},
		{
			name:   "no bracket",
			line:   "01:00.0 VGA compatible controller: NVIDIA Corporation Something",
			vendor: "NVIDIA",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, ExtractGpuModel(tt.line, tt.vendor))
		})
	}
}

func TestBetterGpu(t *testing.T) {
	t.Parallel()

	// Discrete GPUs win over integrated, NVIDIA and AMD over Intel.
	require.True(t, betterGpu(GpuNone, GpuNVIDIA))
	require.True(t, betterGpu(GpuIntel, GpuNVIDIA))
	require.True(t, betterGpu(GpuIntel, GpuAMD))
	require.False(t, betterGpu(GpuNVIDIA, GpuIntel))
	require.False(t, betterGpu(GpuNVIDIA, GpuNVIDIA))
	require.False(t, betterGpu(GpuAMD, GpuIntel))
}
