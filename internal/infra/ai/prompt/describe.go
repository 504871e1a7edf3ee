package prompt

// GetDescribePrompt returns the instruction sent alongside an image. Texture
// mode focuses the model on surface material and tiling patterns.
func GetDescribePrompt(texture bool) string {
    if texture {
        return "You are an assistant that analyses texture images for 3D graphics and returns structured data. " +
            "Look at the provided TEXTURE image and respond with a single JSON object containing the keys " +
            "summary, caption, description, and sentiment. Focus on the surface material properties and patterns. " +
            "- summary: one sentence (<= 30 words) describing the texture type and surface properties. " +
            "- caption: a short caption (<= 12 words) describing the material/surface type. " +
            "- description: two sentences highlighting texture details, patterns, and material characteristics suitable for 3D rendering. " +
            "- sentiment: one of ['positive', 'neutral', 'negative'] representing the overall visual appeal. " +
            "Return only valid JSON without commentary or code fences."
    }
    return "You are an assistant that analyses images and returns structured data. " +
        "Look at the provided image and respond with a single JSON object containing the keys " +
        "summary, caption, description, and sentiment. " +
        "- summary: one sentence (<= 30 words) describing the overall scene. " +
        "- caption: a short caption (<= 12 words) suitable for social media. " +
        "- description: two sentences highlighting notable details. " +
        "- sentiment: one of ['positive', 'neutral', 'negative'] representing the dominant mood. " +
        "Return only valid JSON without commentary or code fences."
}

// GetGeneratePrompt wraps a scene prompt. In texture mode it asks for a
// seamless, tileable surface.
func GetGeneratePrompt(p string, texture bool) string {
    if !texture {
        return p
    }
    return "Generate a seamless, tileable texture for 3D graphics: " + p + ". " +
        "The texture should be high-quality, uniform, and suitable for repeating across surfaces. " +
        "Focus on material properties and surface details that work well in 3D rendering. " +
        "Avoid seams, borders, edges, and ensure the texture tiles seamlessly."
}
