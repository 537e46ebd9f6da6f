package vulkan

import (
	"math"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/platform"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/pass"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultError(t *testing.T) {
	assert.NoError(t, resultError(vk.Success, "vkQueueSubmit"))
	assert.NoError(t, resultError(vk.Suboptimal, "vkQueuePresentKHR"))

	err := resultError(vk.ErrorDeviceLost, "vkQueueSubmit")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.DeviceLost)
	assert.Contains(t, err.Error(), "VK_ERROR_DEVICE_LOST")

	assert.ErrorIs(t, resultError(vk.ErrorOutOfDeviceMemory, "vkAllocateMemory"), core.OutOfMemory)
	assert.ErrorIs(t, resultError(vk.ErrorLayerNotPresent, "vkCreateInstance"), core.FeatureNotSupported)
	assert.Equal(t, core.Failure, resultCode(vk.Result(-12345)))
	assert.Equal(t, "VkResult(-1000)", VulkanResultString(vk.Result(-1000)))
}

func TestSafeStrings(t *testing.T) {
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, "main\x00", VulkanSafeString("main"))
	assert.Equal(t, "main\x00", VulkanSafeString("main\x00"))

	in := []string{"VK_KHR_surface"}
	out := VulkanSafeStrings(in)
	assert.Equal(t, []string{"VK_KHR_surface\x00"}, out)
	assert.Equal(t, "VK_KHR_surface", in[0])

	assert.Equal(t, "VK_LAYER", cString([]byte{'V', 'K', '_', 'L', 'A', 'Y', 'E', 'R', 0, 'x'}))
	assert.Equal(t, "abc", cString([]byte("abc")))
}

func TestFormats(t *testing.T) {
	assert.Equal(t, vk.FormatR16g16b16a16Sfloat, vulkanFormat(pass.FormatRGBA16F))
	assert.Equal(t, vk.FormatD32Sfloat, vulkanFormat(pass.FormatDepth32F))
	assert.Equal(t, vk.FormatR8g8b8a8Unorm, vulkanFormat(pass.FormatRGBA8))
	assert.True(t, isDepthFormat(pass.FormatDepth32F))
	assert.False(t, isDepthFormat(pass.FormatRGBA32F))
	assert.Equal(t, 16, bytesPerPixel(pass.FormatRGBA32F))

	assert.Equal(t, vk.SampleCount1Bit, sampleCountBit(0))
	assert.Equal(t, vk.SampleCount4Bit, sampleCountBit(4))
	assert.Equal(t, vk.SampleCount64Bit, sampleCountBit(64))
}

func TestSpirvWords(t *testing.T) {
	words, err := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []uint32{spirvMagic, 0x00010000}, words)

	_, err = spirvWords([]byte{1, 2, 3})
	assert.ErrorIs(t, err, core.InvalidArgument)
	_, err = spirvWords([]byte{1, 2, 3, 4})
	assert.ErrorIs(t, err, core.InvalidArgument)
}

func TestLayoutTransitions(t *testing.T) {
	_, dst, _, dstStage, err := layoutTransition(vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	require.NoError(t, err)
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferWriteBit), dst)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTransferBit), dstStage)

	_, _, _, _, err = layoutTransition(vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	assert.NoError(t, err)
	_, _, _, _, err = layoutTransition(vk.ImageLayoutShaderReadOnlyOptimal, vk.ImageLayoutUndefined)
	assert.ErrorIs(t, err, core.InvalidArgument)
}

func TestSwapchainChoices(t *testing.T) {
	support := &VulkanSwapchainSupportInfo{
		Formats: []vk.SurfaceFormat{
			{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeImmediate},
	}

	_, ok := support.HDRFormat()
	assert.False(t, ok)
	f, hdr := support.chooseFormat(true)
	assert.False(t, hdr)
	assert.Equal(t, vk.FormatB8g8r8a8Unorm, f.Format)

	hdr10 := vk.ColorSpace(1000104008) // VK_COLOR_SPACE_HDR10_ST2084_EXT
	support.Formats = append(support.Formats, vk.SurfaceFormat{Format: vk.FormatA2b10g10r10UnormPack32, ColorSpace: hdr10})
	f, hdr = support.chooseFormat(true)
	assert.True(t, hdr)
	assert.Equal(t, vk.FormatA2b10g10r10UnormPack32, f.Format)
	f, hdr = support.chooseFormat(false)
	assert.False(t, hdr)
	assert.Equal(t, vk.FormatB8g8r8a8Unorm, f.Format)

	assert.Equal(t, vk.PresentModeFifo, support.choosePresentMode(true))
	assert.Equal(t, vk.PresentModeImmediate, support.choosePresentMode(false))
	support.PresentModes = append(support.PresentModes, vk.PresentModeMailbox)
	assert.Equal(t, vk.PresentModeMailbox, support.choosePresentMode(false))
}

func TestChooseExtent(t *testing.T) {
	caps := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
		MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: vk.Extent2D{Width: 1920, Height: 1080},
	}
	assert.Equal(t, vk.Extent2D{Width: 1920, Height: 720}, chooseExtent(caps, 4096, 720))

	caps.CurrentExtent = vk.Extent2D{Width: 800, Height: 600}
	assert.Equal(t, vk.Extent2D{Width: 800, Height: 600}, chooseExtent(caps, 1280, 720))
}

func TestPassKinds(t *testing.T) {
	for _, typ := range []pass.RenderingPipelineType{pass.GUI, pass.Text2D, pass.Text3D} {
		assert.True(t, isOverlay(typ), typ.String())
	}
	assert.False(t, isOverlay(pass.PBRModel))
	assert.True(t, supportedPass(pass.CascadedShadowMapping))
	assert.False(t, supportedPass(pass.BRDF_LUT))
}

func TestCompatiblePasses(t *testing.T) {
	gui := &VulkanRenderpass{typ: pass.GUI, key: renderpassKey{color: vk.FormatB8g8r8a8Unorm, samples: 1}}
	text := &VulkanRenderpass{typ: pass.Text2D, key: gui.key}
	pbr := &VulkanRenderpass{typ: pass.PBRModel, key: renderpassKey{color: vk.FormatR16g16b16a16Sfloat, samples: 4}}

	assert.True(t, compatible(pbr, pbr))
	assert.True(t, compatible(gui, text))
	assert.False(t, compatible(pbr, gui))

	text.key.color = vk.FormatR8g8b8a8Unorm
	assert.False(t, compatible(gui, text))
}

func TestBackendBeforeInit(t *testing.T) {
	b := New(nil)
	assert.Equal(t, core.GraphicsBackendVulkan, b.Name())
	assert.False(t, b.HDRSupported())
	assert.Equal(t, []settings.MultiSamplingCount{settings.Samples1}, b.AvailableMultiSamplingCounts())
	assert.Equal(t, pass.Extent{}, b.ViewportExtent())
	assert.Equal(t, 1, b.SampleCount())
	assert.ErrorIs(t, b.SetHDR(true), core.FeatureNotSupported)
	assert.ErrorIs(t, b.SetMultiSampling(settings.MultiSamplingMSAA, settings.Samples4), core.FeatureNotSupported)
	assert.ErrorIs(t, b.LoadGfxSettings(settings.Data{}), core.InvalidUse)

	_, err := b.CreateRenderPass(pass.BRDF_LUT)
	assert.ErrorIs(t, err, core.FeatureNotSupported)

	assert.NoError(t, b.Shutdown())
}

func TestInitRequiresVulkanContext(t *testing.T) {
	b := New(nil)
	err := b.Init(renderer.Env{Context: platform.NewHeadless(nil)})
	assert.ErrorIs(t, err, core.FeatureNotSupported)
}

func TestRenderpassFallbacks(t *testing.T) {
	b := New(nil)

	_, err := b.renderpassFor(pass.GUI)
	assert.ErrorIs(t, err, core.FeatureNotSupported)

	gui, err := b.CreateRenderPass(pass.GUI)
	require.NoError(t, err)
	pbr, err := b.CreateRenderPass(pass.PBRModel)
	require.NoError(t, err)

	rp, err := b.renderpassFor(pass.Text3D)
	require.NoError(t, err)
	assert.Same(t, gui, rp)

	rp, err = b.renderpassFor(pass.Reflection)
	require.NoError(t, err)
	assert.Same(t, pbr, rp)

	text, err := b.CreateRenderPass(pass.Text2D)
	require.NoError(t, err)
	rp, err = b.renderpassFor(pass.Text3D)
	require.NoError(t, err)
	assert.Same(t, text, rp)

	_, err = b.renderpassFor(pass.RenderingPipelineType(-1))
	assert.ErrorIs(t, err, core.InvalidArgument)

	gui.(*VulkanRenderpass).Destroy()
	rp, err = b.renderpassFor(pass.GUI)
	assert.Error(t, err)
	assert.Nil(t, rp)
}
