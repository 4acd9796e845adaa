package bot

// =============================================================================
// General messages
// =============================================================================

const (
	MsgUnexpectedErr = `Unexpected error: %s`
	MsgStartPrompt   = "Send me a photo of your meal and I'll estimate its nutrition.\n\n/today shows today's totals\n/meals lists today's meals\n\nTip: add a product barcode as the photo caption for an exact match."
)

// =============================================================================
// Meal photo messages
// =============================================================================

const (
	MsgPhotoDownloadFailed = "Could not download the photo. Please try again."
	MsgEstimateFailed      = "Could not analyze the photo right now. Please try again in a moment."
	MsgEstimateUnreadable  = "Could not read the dish from the photo. Try another angle, or add the barcode as a caption."
	MsgUnverifiedEstimate  = "_Visual estimate only, no database match._"
)

// =============================================================================
// Daily summary messages
// =============================================================================

const (
	MsgNoMealsToday = "No meals logged today yet. Send a photo to log one."
	MsgTodaySummary = "*Today*\n%s"
	MsgMealsHeader  = "*Today's meals*\n"
)

// =============================================================================
// Admin command messages
// =============================================================================

const (
	MsgAdminUsage           = "Usage:\n`/admin users add <user_id>`\n`/admin users remove <user_id>`\n`/admin users list`"
	MsgAdminUserAddUsage    = "Usage: `/admin users add <user_id>`"
	MsgAdminUserRemoveUsage = "Usage: `/admin users remove <user_id>`"
	MsgAdminUserInvalidID   = "Invalid user ID. Give a number."
	MsgAdminUserAdded       = "✅ User `%d` added."
	MsgAdminUserRemoved     = "✅ User `%d` removed."
	MsgAdminNoUsers         = "No users in the whitelist."
	MsgAdminAllowedUsers    = "*Allowed users:*\n"
)
