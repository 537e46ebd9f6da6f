package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/pass"
)

var resultNames = map[vk.Result]string{
	vk.Success:                   "VK_SUCCESS",
	vk.NotReady:                  "VK_NOT_READY",
	vk.Timeout:                   "VK_TIMEOUT",
	vk.Incomplete:                "VK_INCOMPLETE",
	vk.Suboptimal:                "VK_SUBOPTIMAL_KHR",
	vk.ErrorOutOfHostMemory:      "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:    "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:           "VK_ERROR_DEVICE_LOST",
	vk.ErrorMemoryMapFailed:      "VK_ERROR_MEMORY_MAP_FAILED",
	vk.ErrorLayerNotPresent:      "VK_ERROR_LAYER_NOT_PRESENT",
	vk.ErrorExtensionNotPresent:  "VK_ERROR_EXTENSION_NOT_PRESENT",
	vk.ErrorFeatureNotPresent:    "VK_ERROR_FEATURE_NOT_PRESENT",
	vk.ErrorIncompatibleDriver:   "VK_ERROR_INCOMPATIBLE_DRIVER",
	vk.ErrorTooManyObjects:       "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorFormatNotSupported:   "VK_ERROR_FORMAT_NOT_SUPPORTED",
	vk.ErrorSurfaceLost:          "VK_ERROR_SURFACE_LOST_KHR",
	vk.ErrorNativeWindowInUse:    "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR",
	vk.ErrorOutOfDate:            "VK_ERROR_OUT_OF_DATE_KHR",
	vk.ErrorOutOfPoolMemory:      "VK_ERROR_OUT_OF_POOL_MEMORY",
}

func VulkanResultString(result vk.Result) string {
	if name, ok := resultNames[result]; ok {
		return name
	}
	return fmt.Sprintf("VkResult(%d)", int32(result))
}

// VulkanResultIsSuccess reports success codes, which are never negative.
func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= vk.Success
}

// resultCode maps a failed result to the engine status code.
func resultCode(result vk.Result) core.Error {
	switch result {
	case vk.Success:
		return core.Success
	case vk.ErrorDeviceLost, vk.ErrorSurfaceLost:
		return core.DeviceLost
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory, vk.ErrorOutOfPoolMemory, vk.ErrorTooManyObjects:
		return core.OutOfMemory
	case vk.ErrorInitializationFailed, vk.ErrorIncompatibleDriver:
		return core.InitializationFailed
	case vk.ErrorFeatureNotPresent, vk.ErrorExtensionNotPresent, vk.ErrorLayerNotPresent, vk.ErrorFormatNotSupported:
		return core.FeatureNotSupported
	}
	return core.Failure
}

// resultError returns nil for success codes, otherwise a coded error naming
// the failed call.
func resultError(result vk.Result, call string) error {
	if VulkanResultIsSuccess(result) {
		return nil
	}
	return core.Errorf(resultCode(result), "%s failed with %s", call, VulkanResultString(result))
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}

// cString returns the text of a fixed size, zero terminated name array.
func cString(arr []byte) string {
	for i, b := range arr {
		if b == 0 {
			return string(arr[:i])
		}
	}
	return string(arr)
}

func MathClamp(value, lo, hi uint32) uint32 {
	return max(lo, min(value, hi))
}

func vulkanFormat(f pass.Format) vk.Format {
	switch f {
	case pass.FormatRGBA16F:
		return vk.FormatR16g16b16a16Sfloat
	case pass.FormatRGBA32F:
		return vk.FormatR32g32b32a32Sfloat
	case pass.FormatDepth32F:
		return vk.FormatD32Sfloat
	}
	return vk.FormatR8g8b8a8Unorm
}

func isDepthFormat(f pass.Format) bool {
	return f == pass.FormatDepth32F
}

func bytesPerPixel(f pass.Format) int {
	switch f {
	case pass.FormatRGBA16F:
		return 8
	case pass.FormatRGBA32F:
		return 16
	}
	return 4
}

// sampleCountBit relies on VkSampleCountFlagBits being the count itself.
func sampleCountBit(samples int) vk.SampleCountFlagBits {
	if samples < 1 {
		samples = 1
	}
	return vk.SampleCountFlagBits(samples)
}
